package crawler

import (
	"fmt"
	"time"

	"buildprice/priceworker/logger"
	"buildprice/priceworker/services/cache"
)

// NewExtractor returns the extraction strategy named by the source's parser
func NewExtractor(source SourceConfig) (Extractor, error) {
	if err := source.Validate(); err != nil {
		return nil, err
	}

	switch source.Parser {
	case ParserCard:
		return NewCardExtractor(source), nil
	case ParserTable:
		return NewTableExtractor(source), nil
	case ParserTextList:
		return NewTextListExtractor(source), nil
	default:
		return nil, fmt.Errorf("unknown parser %q", source.Parser)
	}
}

// CreateCrawlers builds a crawler for every active, valid source. Invalid
// sources are logged and left out so one bad entry cannot stop the run.
func CreateCrawlers(sources []SourceConfig, fetcher PageFetcher, cacheSvc cache.CacheService, blockTime time.Duration) []Crawler {
	var crawlers []Crawler
	for _, source := range sources {
		log := logger.ForSource(source.ID)
		if !source.Active {
			log.Debug().Msg("Source inactive, skipping")
			continue
		}

		c, err := NewSourceCrawler(source, fetcher, cacheSvc, blockTime)
		if err != nil {
			log.Warn().Err(err).Msg("Invalid source configuration, skipping")
			continue
		}
		crawlers = append(crawlers, c)

		log.Debug().
			Str("parser", string(source.Parser)).
			Str("url", source.URL).
			Msg("Created crawler")
	}

	logger.Info("Created %d crawlers from %d sources", len(crawlers), len(sources))
	return crawlers
}
