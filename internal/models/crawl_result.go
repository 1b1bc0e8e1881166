package models

import "time"

// CrawlStats aggregates the execution counters of one spider invocation
type CrawlStats struct {
	TotalFound      int       `json:"totalFound"`
	DateRange       DateRange `json:"dateRange"`
	RequestCount    int       `json:"requestCount"`
	ExecutionTimeMs int64     `json:"executionTimeMs"`
}

// CrawlResult is the outcome of processing one crawl message
type CrawlResult struct {
	SpiderID    string     `json:"spiderId" badgerhold:"key"`
	TerritoryID string     `json:"territoryId" badgerhold:"index"`
	Gazettes    []Gazette  `json:"gazettes"`
	Stats       CrawlStats `json:"stats"`
	Error       string     `json:"error,omitempty"`
	FinishedAt  time.Time  `json:"finishedAt"`
}

// Succeeded reports whether the crawl completed without a terminal error
func (r CrawlResult) Succeeded() bool {
	return r.Error == ""
}
