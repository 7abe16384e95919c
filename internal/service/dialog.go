package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"property-agent/internal/logger"
	"property-agent/internal/metrics"
	"property-agent/internal/model"
	"property-agent/internal/repository"
	"property-agent/internal/session"
)

var (
	// ErrEmptyMessage is returned for a blank chat message
	ErrEmptyMessage = errors.New("message must not be empty")
	// ErrNoSearchYet is returned when results are requested before any search ran
	ErrNoSearchYet = errors.New("no search has been executed for this session")
)

// DialogState is where a conversation stands in filter collection
type DialogState string

const (
	StateCollecting DialogState = "COLLECTING"
	StateReady      DialogState = "READY"
)

// PropertySearcher executes a compiled property search
type PropertySearcher interface {
	SearchProperties(ctx context.Context, plan model.QueryPlan) ([]model.Property, error)
}

// DialogConfig tunes the search step
type DialogConfig struct {
	MaxResults    int
	SearchTimeout time.Duration
}

// Turn is the outcome of one user message
type Turn struct {
	SessionID       string
	Reply           string
	DialogState     DialogState
	SearchTriggered bool
	Properties      []model.Property
	State           *model.ConversationState
}

// DialogController collects the essential filters one question at a time
// and runs the search once all of them are known.
type DialogController struct {
	normalizer *Normalizer
	store      session.Store
	searcher   PropertySearcher
	config     DialogConfig
	log        logger.Logger
}

// NewDialogController creates a new dialog controller
func NewDialogController(
	normalizer *Normalizer,
	store session.Store,
	searcher PropertySearcher,
	cfg DialogConfig,
	log logger.Logger,
) *DialogController {
	return &DialogController{
		normalizer: normalizer,
		store:      store,
		searcher:   searcher,
		config:     cfg,
		log:        log,
	}
}

// Advance processes one message for sessionID. An empty or unknown id starts
// a new session; the id actually used is returned in the Turn. Search
// failures become an apology reply, never an error; store failures are returned.
func (d *DialogController) Advance(ctx context.Context, sessionID, message string) (*Turn, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	sessionID, err := d.ensureSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	unlock, err := d.store.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := d.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	log := d.log.With(map[string]interface{}{"session_id": sessionID})

	update, err := d.normalizer.Normalize(ctx, message, state.CollectedFilters)
	if err != nil {
		log.WithError(err).Error("filter extraction failed", nil)
		metrics.MessagesTotal.WithLabelValues(metrics.OutcomeExtractionFailed).Inc()
		return d.reply(ctx, state, message, replyExtractionFailed, StateCollecting)
	}

	state.CollectedFilters.Merge(update)

	if missing := state.CollectedFilters.Missing(); len(missing) > 0 {
		log.Debug("asking for missing filter", map[string]interface{}{
			"next":    string(missing[0]),
			"missing": len(missing),
		})
		metrics.MessagesTotal.WithLabelValues(metrics.OutcomeAsked).Inc()
		return d.reply(ctx, state, message, QuestionFor(missing[0]), StateCollecting)
	}

	plan := repository.BuildPropertySearchQuery(state.CollectedFilters, d.config.MaxResults)
	properties, searchErr := d.search(ctx, plan)
	if searchErr != nil {
		log.WithError(searchErr).Error("property search failed", map[string]interface{}{"sql": plan.SQL})
		properties = nil
	}

	if err := d.store.SaveQueryResult(ctx, sessionID, plan.SQL, properties); err != nil {
		return nil, fmt.Errorf("failed to save query result: %w", err)
	}

	reply := replySearchFailed
	if searchErr == nil {
		reply = ResultReply(len(properties))
		metrics.MessagesTotal.WithLabelValues(metrics.OutcomeSearched).Inc()
		log.Info("search completed", map[string]interface{}{"results": len(properties)})
	} else {
		metrics.MessagesTotal.WithLabelValues(metrics.OutcomeSearchFailed).Inc()
	}

	turn, err := d.reply(ctx, state, message, reply, StateReady)
	if err != nil {
		return nil, err
	}
	turn.SearchTriggered = true
	turn.Properties = properties
	return turn, nil
}

// reply records the exchange and saves the conversation
func (d *DialogController) reply(
	ctx context.Context,
	state *model.ConversationState,
	message, reply string,
	dialogState DialogState,
) (*Turn, error) {
	state.AppendMessage(model.RoleUser, message)
	state.AppendMessage(model.RoleAssistant, reply)

	if err := d.store.Save(ctx, state.SessionID, state); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}

	return &Turn{
		SessionID:   state.SessionID,
		Reply:       reply,
		DialogState: dialogState,
		State:       state,
	}, nil
}

func (d *DialogController) search(ctx context.Context, plan model.QueryPlan) ([]model.Property, error) {
	if d.config.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.SearchTimeout)
		defer cancel()
	}

	start := time.Now()
	properties, err := d.searcher.SearchProperties(ctx, plan)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.SearchDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	return properties, err
}

func (d *DialogController) ensureSession(ctx context.Context, sessionID string) (string, error) {
	if sessionID != "" {
		_, err := d.store.Load(ctx, sessionID)
		if err == nil {
			return sessionID, nil
		}
		if !errors.Is(err, session.ErrSessionNotFound) {
			return "", fmt.Errorf("failed to load session %s: %w", sessionID, err)
		}
		d.log.Info("unknown session, starting a new one", map[string]interface{}{"session_id": sessionID})
	}
	return d.CreateSession(ctx)
}

// CreateSession starts an empty conversation
func (d *DialogController) CreateSession(ctx context.Context) (string, error) {
	id, err := d.store.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// LastSearch returns the most recent search of sessionID, or ErrNoSearchYet
func (d *DialogController) LastSearch(ctx context.Context, sessionID string) (*model.QueryResult, error) {
	result, err := d.store.LoadQueryResult(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !result.Searched() {
		return nil, ErrNoSearchYet
	}
	return result, nil
}

// ResetSession forgets the filters, history and last search of sessionID
func (d *DialogController) ResetSession(ctx context.Context, sessionID string) error {
	unlock, err := d.store.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()
	return d.store.Reset(ctx, sessionID)
}

// ActiveSessions returns the number of sessions in the store
func (d *DialogController) ActiveSessions(ctx context.Context) (int, error) {
	return d.store.Count(ctx)
}
