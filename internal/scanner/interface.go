package scanner

import (
	"context"

	"Corsgo/internal/httpclient"
	"Corsgo/internal/logger"
)

type Scanner interface {
	Name() string
	Scan(ctx context.Context, target Target, client *httpclient.Client, log *logger.Logger, opts ScannerOptions) ([]Finding, error)
}
