// internal/pipeline/ingest/models.go
package ingest

import "time"

// Article is a raw feed entry before scoring.
type Article struct {
	Company     string
	Title       string
	Description string
	URL         string
	Source      string
	PublishedAt time.Time
}

// Result aggregates a portfolio fetch. Failed maps company name to the
// fetch error so one dead feed never sinks the whole run.
type Result struct {
	Articles []Article
	Failed   map[string]error
}

// rssFeed mirrors the Google News RSS layout.
type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	PubDate     string    `xml:"pubDate"`
	Source      rssSource `xml:"source"`
}

type rssSource struct {
	Name string `xml:",chardata"`
	URL  string `xml:"url,attr"`
}
