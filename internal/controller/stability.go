package controller

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/action"
	"github.com/v0xg/uistep/internal/dom"
)

// Settle names the post-action wait that was applied.
type Settle string

const (
	// SettleNavigation waits for DOMContentLoaded, then the long delay.
	SettleNavigation Settle = "navigation"
	// SettleShort waits the short delay.
	SettleShort Settle = "short"
)

// Stability configures the wait after each action.
type Stability struct {
	// Keywords in a description that mark a click or submission as
	// likely to navigate.
	Keywords []string
	// Long is the delay after a navigating action.
	Long time.Duration
	// Short is the delay after any other action.
	Short time.Duration
	// DOMContentLoaded bounds the load wait of a navigating action.
	DOMContentLoaded time.Duration
}

// DefaultStability returns the production waits.
func DefaultStability() Stability {
	return Stability{
		Keywords:         []string{"login", "log in", "sign in", "submit", "continue", "next", "enter"},
		Long:             2 * time.Second,
		Short:            time.Second,
		DOMContentLoaded: 5 * time.Second,
	}
}

func (s Stability) withDefaults() Stability {
	def := DefaultStability()
	if s.Keywords == nil {
		s.Keywords = def.Keywords
	}
	if s.Long <= 0 {
		s.Long = def.Long
	}
	if s.Short <= 0 {
		s.Short = def.Short
	}
	if s.DOMContentLoaded <= 0 {
		s.DOMContentLoaded = def.DOMContentLoaded
	}
	return s
}

// Mode picks the wait for an action: navigate and reload always navigate;
// clicks and submissions do when the description carries a keyword as a
// whole word.
func (s Stability) Mode(kind action.Kind, description string) Settle {
	switch kind {
	case action.KindNavigate, action.KindReload:
		return SettleNavigation
	case action.KindClick, action.KindSmartClick, action.KindSubmitForm, action.KindFillSubmit:
		desc := strings.ToLower(description)
		for _, k := range s.Keywords {
			if k != "" && action.HasPhrase(desc, strings.ToLower(k)) {
				return SettleNavigation
			}
		}
	}
	return SettleShort
}

// wait applies mode. A load wait that times out or fails is logged and
// ignored; only cancellation of ctx is returned.
func (s Stability) wait(ctx context.Context, page dom.Page, mode Settle, log *zap.Logger) error {
	if mode == SettleNavigation {
		err := dom.WithTimeout(ctx, "wait domcontentloaded", s.DOMContentLoaded, page.WaitDOMContentLoaded)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debug("load wait ignored", zap.Error(err))
		}
		return dom.Sleep(ctx, s.Long)
	}
	return dom.Sleep(ctx, s.Short)
}
