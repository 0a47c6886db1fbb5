// Package notify acquires the push-notification identity handed to the
// server at login. Every failure is soft: the caller always gets an
// identity, possibly without a token.
package notify

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nhle/facility-maintenance/internal/model"
)

// Permission is the host platform's notification permission state.
type Permission string

const (
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
	PermissionUndetermined Permission = "undetermined"
)

// Platform is the host's push registration facility.
type Platform interface {
	// Permission returns the current permission without prompting.
	Permission(ctx context.Context) (Permission, error)

	// RequestPermission prompts for permission and returns the result.
	RequestPermission(ctx context.Context) (Permission, error)

	// Token returns a push token bound to projectID.
	Token(ctx context.Context, projectID string) (string, error)
}

// Provider obtains and memoizes the process's notification identity.
type Provider struct {
	platform  Platform
	projectID string
	log       logrus.FieldLogger

	mu       sync.Mutex
	identity *model.NotificationIdentity
}

// NewProvider creates a provider for platform bound to projectID.
func NewProvider(platform Platform, projectID string, log logrus.FieldLogger) *Provider {
	return &Provider{
		platform:  platform,
		projectID: projectID,
		log:       log.WithField("component", "notify"),
	}
}

// Acquire returns the process's notification identity, registering on
// first use. It never fails; see NotificationIdentity.LastError.
func (p *Provider) Acquire(ctx context.Context) model.NotificationIdentity {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.identity == nil {
		id := p.register(ctx)
		p.identity = &id
	}
	return *p.identity
}

// Refresh discards the memoized identity and registers again.
func (p *Provider) Refresh(ctx context.Context) model.NotificationIdentity {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.register(ctx)
	p.identity = &id
	return id
}

func (p *Provider) register(ctx context.Context) model.NotificationIdentity {
	status, err := p.platform.Permission(ctx)
	if err != nil {
		return p.failed(err, "checking notification permission")
	}
	if status != PermissionGranted {
		status, err = p.platform.RequestPermission(ctx)
		if err != nil {
			return p.failed(err, "requesting notification permission")
		}
	}
	if status != PermissionGranted {
		p.log.Info("notification permission not granted; continuing without push token")
		return model.NotificationIdentity{LastError: model.IdentityPermissionDenied}
	}

	if p.projectID == "" {
		p.log.Warn("push project id not configured; continuing without push token")
		return model.NotificationIdentity{LastError: model.IdentityMissingProjectID}
	}

	token, err := p.platform.Token(ctx, p.projectID)
	if err != nil {
		return p.failed(err, "acquiring push token")
	}
	if token == "" {
		p.log.Warn("platform returned an empty push token")
		return model.NotificationIdentity{LastError: model.IdentityAcquisitionFailed}
	}

	p.log.WithField("project_id", p.projectID).Debug("push token acquired")
	return model.NotificationIdentity{Token: &token}
}

func (p *Provider) failed(err error, what string) model.NotificationIdentity {
	p.log.WithError(err).Warn(what)
	return model.NotificationIdentity{LastError: model.IdentityAcquisitionFailed}
}
