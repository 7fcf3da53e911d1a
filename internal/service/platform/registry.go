package platform

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/scribeflow/scribeflow/internal/models"
)

// Registry resolves platform clients by kind.
type Registry struct {
	clients map[models.PlatformKind]Client
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		clients: make(map[models.PlatformKind]Client),
		logger:  logger,
	}
}

func (r *Registry) Register(client Client) error {
	kind := client.Kind()
	if _, exists := r.clients[kind]; exists {
		return fmt.Errorf("client for platform %s already registered", kind)
	}

	r.clients[kind] = client
	r.logger.Info("Platform client registered", zap.String("platform", string(kind)))
	return nil
}

func (r *Registry) Get(kind models.PlatformKind) (Client, error) {
	client, exists := r.clients[kind]
	if !exists {
		return nil, fmt.Errorf("client for platform %s not found", kind)
	}
	return client, nil
}

func (r *Registry) Available() []models.PlatformKind {
	var kinds []models.PlatformKind
	for kind := range r.clients {
		kinds = append(kinds, kind)
	}
	return kinds
}
