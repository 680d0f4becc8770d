package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// Sources recorded on product_added_to_cart events.
const (
	SourceAPI     = "api"
	SourceChatbot = "chatbot_auto"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productResolver interface {
	Resolve(ctx context.Context, tx *gorm.DB, ref catalog.ProductRef) (models.Product, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes the cart reconciliation operations.
type Service interface {
	AddItem(ctx context.Context, input AddItemInput) (*CartView, error)
	Project(ctx context.Context, cartID uuid.UUID) (*CartView, error)
	GetActive(ctx context.Context, identity Identity) (*CartView, error)
}

// AddItemInput is one add-to-cart request.
type AddItemInput struct {
	Product       catalog.ProductRef
	VariantID     *uuid.UUID
	Quantity      int
	Identity      Identity
	Source        string
	OriginalInput string
}

// ServiceParams bundles the dependencies required to build a cart service.
type ServiceParams struct {
	Repo     CartRepository
	Tx       txRunner
	Resolver productResolver
	Outbox   eventEmitter
	Metrics  *metrics.CartMetrics
	Logger   *logger.Logger
	Config   config.CartConfig
}

type service struct {
	repo     CartRepository
	tx       txRunner
	resolver productResolver
	outbox   eventEmitter
	metrics  *metrics.CartMetrics
	logg     *logger.Logger
	attempts int
	backoff  time.Duration
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("product resolver required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	attempts := params.Config.MaxAttempts
	if attempts < 1 || attempts > config.MaxCartAttempts {
		attempts = config.MaxCartAttempts
	}
	backoff := params.Config.RetryBackoff
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		resolver: params.Resolver,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     logg,
		attempts: attempts,
		backoff:  backoff,
	}, nil
}

// AddItem resolves the product, locates or creates the caller's active cart,
// merges the line and queues the analytics event in one transaction, then
// projects the committed cart.
func (s *service) AddItem(ctx context.Context, input AddItemInput) (*CartView, error) {
	start := time.Now()
	view, err := s.addItem(ctx, input)
	s.metrics.ObserveDuration(time.Since(start))
	s.metrics.IncOutcome(outcomeFor(err))

	identity := input.Identity.Normalize()
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"identity":  identity.AnalyticsIdentity(),
		"product":   refString(input.Product),
		"quantity":  input.Quantity,
		"source":    input.Source,
		"outcome":   outcomeFor(err),
		"duration":  time.Since(start).String(),
		"variantId": input.VariantID,
	})
	switch {
	case err == nil:
		logCtx = s.logg.WithCartID(logCtx, view.ID.String())
		s.logg.Info(logCtx, "cart item added")
	case isClientError(err):
		s.logg.Warn(logCtx, "cart item rejected")
	default:
		s.logg.Error(logCtx, "cart item add failed", err)
	}
	return view, err
}

func (s *service) addItem(ctx context.Context, input AddItemInput) (*CartView, error) {
	identity := input.Identity.Normalize()
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if input.Product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is required")
	}
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = SourceAPI
	}

	var cartID uuid.UUID
	err := s.withRetry(ctx, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			product, err := s.resolver.Resolve(ctx, tx, input.Product)
			if err != nil {
				return err
			}

			repo := s.repo.WithTx(tx)
			cart, err := repo.LocateActive(ctx, identity)
			if err != nil {
				return dbpkg.ClassifyError(err, "locate active cart")
			}
			if _, err := repo.MergeLine(ctx, MergeInput{
				CartID:    cart.ID,
				Product:   product,
				VariantID: input.VariantID,
				Quantity:  quantity,
			}); err != nil {
				return dbpkg.ClassifyError(err, "merge cart line")
			}

			now := time.Now().UTC()
			if err := repo.Touch(ctx, cart.ID, now); err != nil {
				return dbpkg.ClassifyError(err, "touch cart")
			}
			if err := s.outbox.Emit(ctx, tx, itemAddedEvent(cart.ID, product, identity, input, quantity, source, now)); err != nil {
				return dbpkg.ClassifyError(err, "queue cart event")
			}
			cartID = cart.ID
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Project(ctx, cartID)
}

// withRetry reruns fn while it fails with a transaction conflict. The backoff
// doubles per attempt with up to 50% jitter.
func (s *service) withRetry(ctx context.Context, fn func() error) error {
	b := retry.WithMaxRetries(uint64(s.attempts-1),
		retry.WithJitterPercent(50, retry.NewExponential(s.backoff)))

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := dbpkg.ClassifyError(fn(), "add item to cart")
		if err == nil || !pkgerrors.IsCode(err, pkgerrors.CodeTxConflict) {
			return err
		}
		if attempt < s.attempts {
			s.metrics.IncRetry()
			s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "cart transaction conflict, retrying")
		}
		return retry.RetryableError(err)
	})
	if err != nil && pkgerrors.As(err) == nil && ctx.Err() != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "retry interrupted")
	}
	return err
}

func (s *service) Project(ctx context.Context, cartID uuid.UUID) (*CartView, error) {
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, lookupError(err, "cart not found")
	}
	return s.project(ctx, cart)
}

func (s *service) GetActive(ctx context.Context, identity Identity) (*CartView, error) {
	identity = identity.Normalize()
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	cart, err := s.repo.FindActive(ctx, identity)
	if err != nil {
		return nil, lookupError(err, "no active cart")
	}
	return s.project(ctx, cart)
}

func (s *service) project(ctx context.Context, cart *models.Cart) (*CartView, error) {
	lines, err := s.repo.ListLines(ctx, cart.ID)
	if err != nil {
		return nil, dbpkg.ClassifyError(err, "list cart lines")
	}
	view := Project(*cart, lines)
	return &view, nil
}

func itemAddedEvent(cartID uuid.UUID, product models.Product, identity Identity, input AddItemInput, quantity int, source string, at time.Time) outbox.DomainEvent {
	payload := payloads.CartItemAddedEvent{
		Event:     string(enums.EventProductAddedToCart),
		Identity:  identity.AnalyticsIdentity(),
		CartID:    cartID,
		ProductID: product.ID,
		Quantity:  quantity,
		Timestamp: at,
		Metadata: payloads.CartItemAddedMetadata{
			VariantID:     input.VariantID,
			Source:        source,
			ProductName:   product.Name,
			OriginalInput: input.OriginalInput,
		},
	}
	actor := &outbox.ActorRef{Source: source}
	if identity.IsGuest() {
		payload.SessionID = &identity.SessionID
		actor.SessionID = identity.SessionID
	} else {
		payload.UserID = &identity.UserID
		actor.UserID = identity.UserID
	}
	return outbox.DomainEvent{
		EventType:     enums.EventProductAddedToCart,
		AggregateType: enums.AggregateCart,
		AggregateID:   cartID,
		Actor:         actor,
		Data:          payload,
		OccurredAt:    at,
	}
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch code := pkgerrors.As(err); {
	case code == nil:
		return metrics.OutcomePersistence
	case code.Code() == pkgerrors.CodeNotFound:
		return metrics.OutcomeNotFound
	case code.Code() == pkgerrors.CodeOutOfStock:
		return metrics.OutcomeOutOfStock
	case code.Code() == pkgerrors.CodeTxConflict:
		return metrics.OutcomeConflict
	case code.Code() == pkgerrors.CodeValidation, code.Code() == pkgerrors.CodeMissingIdentity:
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomePersistence
	}
}

func isClientError(err error) bool {
	switch outcomeFor(err) {
	case metrics.OutcomeNotFound, metrics.OutcomeOutOfStock, metrics.OutcomeInvalid:
		return true
	}
	return false
}

func refString(ref catalog.ProductRef) string {
	if ref == nil {
		return ""
	}
	return ref.String()
}

func lookupError(err error, notFound string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, notFound)
	}
	return dbpkg.ClassifyError(err, "load cart")
}
