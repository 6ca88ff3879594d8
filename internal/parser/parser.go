// Package parser turns quotes site markup into crawl records using goquery
// CSS selectors.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

// Selectors used against the listing and author pages.
const (
	SelQuote        = "div.quote"
	SelQuoteText    = "span.text"
	SelQuoteAuthor  = "small.author"
	SelAuthorLink   = "a"
	SelKeywords     = "meta.keywords"
	SelNextPage     = "li.next a"
	SelAuthorTitle  = "h3.author-title"
	SelBornDate     = "span.author-born-date"
	SelBornLocation = "span.author-born-location"
	SelDescription  = "div.author-description"
)

// Parser implements crawler.Parser.
type Parser struct{}

// New returns a Parser.
func New() *Parser {
	return &Parser{}
}

var _ crawler.Parser = (*Parser)(nil)

// ParseListing extracts every quote block and the next-page link. A block
// missing any required element fails the whole page so that no partial page
// is ever stored.
func (p *Parser) ParseListing(body []byte) (crawler.ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.ListingPage{}, &crawler.ParseError{Selector: "html", Err: err}
	}

	var (
		page     crawler.ListingPage
		blockErr error
	)
	doc.Find(SelQuote).EachWithBreak(func(i int, block *goquery.Selection) bool {
		quote, ref, err := parseBlock(block)
		if err != nil {
			blockErr = fmt.Errorf("quote block %d: %w", i, err)
			return false
		}
		page.Quotes = append(page.Quotes, quote)
		page.Refs = append(page.Refs, ref)
		return true
	})
	if blockErr != nil {
		return crawler.ListingPage{}, blockErr
	}

	if next := doc.Find(SelNextPage).First(); next.Length() > 0 {
		href, ok := next.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return crawler.ListingPage{}, &crawler.ParseError{Selector: SelNextPage + "@href", Err: errMissing}
		}
		page.Next = strings.TrimSpace(href)
	}
	return page, nil
}

func parseBlock(block *goquery.Selection) (crawler.Quote, crawler.AuthorRef, error) {
	text := block.Find(SelQuoteText).First()
	if text.Length() == 0 {
		return crawler.Quote{}, crawler.AuthorRef{}, &crawler.ParseError{Selector: SelQuoteText, Err: errMissing}
	}
	author := block.Find(SelQuoteAuthor).First()
	if author.Length() == 0 {
		return crawler.Quote{}, crawler.AuthorRef{}, &crawler.ParseError{Selector: SelQuoteAuthor, Err: errMissing}
	}
	href, ok := author.NextAllFiltered(SelAuthorLink).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return crawler.Quote{}, crawler.AuthorRef{}, &crawler.ParseError{Selector: SelQuoteAuthor + " ~ a@href", Err: errMissing}
	}
	keywords := block.Find(SelKeywords).First()
	if keywords.Length() == 0 {
		return crawler.Quote{}, crawler.AuthorRef{}, &crawler.ParseError{Selector: SelKeywords, Err: errMissing}
	}
	content, ok := keywords.Attr("content")
	if !ok {
		return crawler.Quote{}, crawler.AuthorRef{}, &crawler.ParseError{Selector: SelKeywords + "@content", Err: errMissing}
	}

	quote, err := crawler.NewQuote(text.Text(), author.Text(), strings.Split(content, ","))
	if err != nil {
		return crawler.Quote{}, crawler.AuthorRef{}, &crawler.ParseError{Selector: SelQuote, Err: err}
	}
	return quote, crawler.AuthorRef{Name: quote.Author, Href: strings.TrimSpace(href)}, nil
}

// ParseAuthor reads the biography fields. Only the title is required; the
// other fields come back nil when absent.
func (p *Parser) ParseAuthor(body []byte) (crawler.AuthorDetails, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.AuthorDetails{}, &crawler.ParseError{Selector: "html", Err: err}
	}
	if doc.Find(SelAuthorTitle).Length() == 0 {
		return crawler.AuthorDetails{}, &crawler.ParseError{Selector: SelAuthorTitle, Err: errMissing}
	}
	return crawler.AuthorDetails{
		BornDate:     textOf(doc, SelBornDate),
		BornLocation: textOf(doc, SelBornLocation),
		Description:  textOf(doc, SelDescription),
	}, nil
}

func textOf(doc *goquery.Document, selector string) *string {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	s := sel.Text()
	return &s
}
