// CLAUDE:SUMMARY Re-exports store, dispatch, analytics and report types as the marketintel public API.
// Package marketintel tracks competitor companies and products, scrapes
// e-commerce, news and social sources for price and sentiment signals,
// stores them as observations and computes analytics and reports over them.
//
// Service is the single entry point; RegisterHTTP and RegisterMCP expose it.
package marketintel

import (
	"github.com/hazyhaar/marketintel/marketintel/internal/analytics"
	"github.com/hazyhaar/marketintel/marketintel/internal/cache"
	"github.com/hazyhaar/marketintel/marketintel/internal/dispatch"
	"github.com/hazyhaar/marketintel/marketintel/internal/report"
	"github.com/hazyhaar/marketintel/marketintel/internal/store"
)

type (
	Company     = store.Company
	Product     = store.Product
	Observation = store.Observation
	Report      = store.Report
	Alert       = store.Alert

	ScrapeResult  = dispatch.Result
	ScrapeSummary = dispatch.Summary
	ScrapeStats   = dispatch.Stats

	PriceTrend         = analytics.PriceTrend
	Sentiment          = analytics.Sentiment
	CompetitorAnalysis = analytics.CompetitorAnalysis
	MarketOverview     = analytics.MarketOverview
	PerformanceSummary = analytics.PerformanceSummary
	AnomalyReport      = analytics.AnomalyReport

	// Cache is the shared key/value store for fetched pages and alert state.
	Cache = cache.Cache
)

// Report kinds.
const (
	ReportDaily      = report.Daily
	ReportWeekly     = report.Weekly
	ReportMonthly    = report.Monthly
	ReportCompetitor = report.Competitor
	ReportCustom     = report.Custom
)

// Report render formats.
const (
	FormatJSON     = report.FormatJSON
	FormatHTML     = report.FormatHTML
	FormatMarkdown = report.FormatMarkdown
)

// Report statuses.
const (
	StatusPending    = store.StatusPending
	StatusProcessing = store.StatusProcessing
	StatusCompleted  = store.StatusCompleted
	StatusFailed     = store.StatusFailed
)
