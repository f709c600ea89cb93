package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jcopacetic/lumi/internal/logger"
)

// StepTTL is how long abandoned wizard state survives in Redis.
const StepTTL = 7 * 24 * time.Hour

// StepData is one wizard step's form payload.
type StepData map[string]any

// State is the whole in-progress wizard for one user and product.
type State struct {
	Product string           `json:"product"`
	Steps   map[int]StepData `json:"steps"`
	// ApplicationID is set when the wizard continues an existing draft.
	ApplicationID string    `json:"application_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store keeps wizard step data in Redis keyed by user and loan product, so a
// partner can resume an application from any device.
type Store struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewStore(log *logger.Logger) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Store{
		log: log.With("service", "WizardStore"),
		rdb: rdb,
	}, nil
}

func key(userID uuid.UUID, product string) string {
	return fmt.Sprintf("wizard:%s:%s", userID, product)
}

// SaveStep merges one step's payload into the stored state and refreshes the
// TTL.
func (s *Store) SaveStep(ctx context.Context, userID uuid.UUID, product string, step int, data StepData) error {
	state, err := s.Load(ctx, userID, product)
	if err != nil {
		return err
	}
	if state == nil {
		state = &State{Product: product, Steps: make(map[int]StepData)}
	}
	if state.Steps == nil {
		state.Steps = make(map[int]StepData)
	}
	state.Steps[step] = data
	return s.save(ctx, userID, product, state)
}

// SetApplicationID links the wizard state to an existing draft row.
func (s *Store) SetApplicationID(ctx context.Context, userID uuid.UUID, product string, applicationID uuid.UUID) error {
	state, err := s.Load(ctx, userID, product)
	if err != nil {
		return err
	}
	if state == nil {
		state = &State{Product: product, Steps: make(map[int]StepData)}
	}
	state.ApplicationID = applicationID.String()
	return s.save(ctx, userID, product, state)
}

func (s *Store) save(ctx context.Context, userID uuid.UUID, product string, state *State) error {
	state.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal wizard state: %w", err)
	}
	if err := s.rdb.Set(ctx, key(userID, product), raw, StepTTL).Err(); err != nil {
		return fmt.Errorf("store wizard state: %w", err)
	}
	return nil
}

// Load returns the stored state, or nil when the wizard has not started.
func (s *Store) Load(ctx context.Context, userID uuid.UUID, product string) (*State, error) {
	raw, err := s.rdb.Get(ctx, key(userID, product)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load wizard state: %w", err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		s.log.Warn("corrupt wizard state; discarding", "user_id", userID, "product", product, "error", err)
		return nil, nil
	}
	return &state, nil
}

// Clear drops the wizard state, typically after submit.
func (s *Store) Clear(ctx context.Context, userID uuid.UUID, product string) error {
	return s.rdb.Del(ctx, key(userID, product)).Err()
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
