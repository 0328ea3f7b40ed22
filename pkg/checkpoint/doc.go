// Package checkpoint persists crawl entries and their progress.
//
// The store is a human-editable YAML mapping from entry name to selectors,
// skip list and saved URLs:
//
//	MyComic:
//	  url: https://example.com/comic/1
//	  next_page: //a[@rel="next"]/@href
//	  title: //h1/text()
//	  image: //div[@id="comic"]//img/@src
//	  text: null
//	  saved_urls: []
//	  skip: []
//
// Every RecordSaved call rewrites the file atomically before returning, so
// an interrupted crawl loses at most the page that was in flight. While an
// asset downloads the entry carries a pending record naming its page and
// file, so the next run can pick that file up. Edits are
// applied to the parsed document tree, which keeps entry order, comments and
// unknown keys intact.
package checkpoint
