package sqlrepo

import (
	"context"
	"time"

	"github.com/TUD-CERT/docleaner/pkg/log"
)

// queryHooks satisfies sqlhooks.Hooks, logging every query and its elapsed
// time at debug level.
type queryHooks struct{}

type ctxKey string

const ctxKeyBegin ctxKey = "begin"

func (h *queryHooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("sqlrepo: query %s %q", query, args)
	return context.WithValue(ctx, ctxKeyBegin, time.Now()), nil
}

func (h *queryHooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(ctxKeyBegin).(time.Time); ok {
		log.Debugf("sqlrepo: took %s", time.Since(begin))
	}
	return ctx, nil
}
