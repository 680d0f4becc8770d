package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/gcp"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	collectionTopics        = "topics"
	collectionSubscriptions = "subscriptions"
)

var errClientNotInitialized = errors.New("pubsub client not initialized")

// Client wraps the Pub/Sub v2 client. Each binary declares the topics and
// subscriptions it depends on; NewClient and Ping fail when any is missing.
type Client struct {
	client    *pubsub.Client
	projectID string
	required  []resource

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

type resource struct {
	collection string
	name       string
}

type Option func(*Client)

func RequireTopic(name string) Option {
	return func(c *Client) { c.require(collectionTopics, name) }
}

func RequireSubscription(name string) Option {
	return func(c *Client) { c.require(collectionSubscriptions, name) }
}

func NewClient(ctx context.Context, gcpCfg config.GCPConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	projectID, err := gcp.ProjectID(gcpCfg)
	if err != nil {
		return nil, err
	}

	c := &Client{projectID: projectID, publishers: map[string]*pubsub.Publisher{}}
	for _, opt := range opts {
		opt(c)
	}

	c.client, err = pubsub.NewClient(ctx, projectID, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.client.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "resources", len(c.required)), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) require(collection, name string) {
	full := gcp.ResourceName(c.projectID, collection, name)
	if full == "" {
		return
	}
	c.required = append(c.required, resource{collection: collection, name: full})
}

// Ping checks every required topic and subscription concurrently.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for _, r := range c.required {
		group.Go(func() error { return c.check(groupCtx, r) })
	}
	return group.Wait()
}

func (c *Client) check(ctx context.Context, r resource) error {
	var err error
	switch r.collection {
	case collectionTopics:
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: r.name})
	case collectionSubscriptions:
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: r.name})
	default:
		return fmt.Errorf("unknown pubsub collection %q", r.collection)
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s does not exist", r.name)
	}
	if err != nil {
		return fmt.Errorf("checking %s: %w", r.name, err)
	}
	return nil
}

// Subscriber returns a handle for a subscription id or full resource name.
func (c *Client) Subscriber(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := gcp.ResourceName(c.projectID, collectionSubscriptions, name)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

// Publisher returns the shared publisher for a topic. Publishers batch
// internally, so one per topic is kept for the life of the client.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := gcp.ResourceName(c.projectID, collectionTopics, name)
	if full == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[full]; ok {
		return p
	}
	p := c.client.Publisher(full)
	c.publishers[full] = p
	return p
}

// Close flushes outstanding publishes and releases the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for full, p := range c.publishers {
		p.Stop()
		delete(c.publishers, full)
	}
	c.mu.Unlock()
	return c.client.Close()
}
