package extract

import (
	"fmt"
	"time"

	"bondfeed-etl/internal/config"
	"bondfeed-etl/internal/etl"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Factory builds the extractor for one source configuration.
type Factory func(src config.SourceConfig, workDir string, logger *zap.Logger) (Extractor, error)

// NewExtractor dispatches on (type, category) to a concrete extractor.
// Unknown combinations are configuration errors.
func NewExtractor(src config.SourceConfig, workDir string, logger *zap.Logger) (Extractor, error) {
	switch src.Type {
	case config.TypeObjectStore:
		return newObjectStoreExtractor(src, workDir, logger)
	case config.TypeSQL:
		switch src.Category {
		case config.CategoryBondFutureQuote:
			return newSQLExtractor(src, mapBondFutureRow, logger), nil
		default:
			return nil, fmt.Errorf("source %s: no sql extractor for category %q", src.Name, src.Category)
		}
	default:
		return nil, fmt.Errorf("source %s: unknown source type %q", src.Name, src.Type)
	}
}

func newObjectStoreExtractor(src config.SourceConfig, workDir string, logger *zap.Logger) (Extractor, error) {
	var produce rowProducer
	// Some file families publish under dashed date prefixes; YYYYMMDD is
	// the default.
	dateFormat := src.Property("date_format", "20060102")
	switch src.Category {
	case config.CategoryAllPriceDepth:
		produce = produceQuotes
	case config.CategoryXbondCfetsDeal:
		produce = produceTrades
		dateFormat = src.Property("date_format", "2006-01-02")
	default:
		return nil, fmt.Errorf("source %s: no object-store extractor for category %q", src.Name, src.Category)
	}

	store, err := newMinioStore(src)
	if err != nil {
		return nil, err
	}

	maxSize := int64(src.IntProperty("max_object_size_bytes", 0))
	if maxSize <= 0 {
		maxSize = DefaultMaxObjectSize
	}

	// Pace downloads so a wide day cannot hammer the store.
	downloadsPerSec := src.IntProperty("downloads_per_second", 20)

	return &objectStoreExtractor{
		name:          src.Name,
		category:      src.Category,
		client:        store,
		workDir:       workDir,
		dateFormat:    dateFormat,
		maxObjectSize: maxSize,
		limiter:       rate.NewLimiter(rate.Limit(downloadsPerSec), downloadsPerSec),
		produce:       produce,
		logger:        logger,
	}, nil
}

// factoryError wraps a dispatch failure in the taxonomy.
func factoryError(date time.Time, err error) error {
	return etl.NewError(etl.KindConfig, etl.SubprocessExtract, date, "extractor factory", err)
}
