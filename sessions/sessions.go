package sessions

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/oauth2"

	"github.com/tidepool-org/cardiac/errors"
)

//go:generate mockgen -source=./sessions.go -destination=./test/mock_repository.go -package test MockRepository

type State string

const (
	StateUnauthenticated State = "UNAUTHENTICATED"
	StateAuthorizing     State = "AUTHORIZING"
	StateAuthenticated   State = "AUTHENTICATED"
	StateRefreshing      State = "REFRESHING"

	// RefreshBuffer is how long before expiry a token is refreshed
	RefreshBuffer = 5 * time.Minute

	// DefaultExpiresIn is used when the provider doesn't report the lifetime of a token
	DefaultExpiresIn = 28800 * time.Second

	pendingStateTTL = 10 * time.Minute
)

var (
	ErrNotFound          = fmt.Errorf("session %w", errors.NotFound)
	ErrCredentialExpired = fmt.Errorf("provider credential expired %w", errors.Unauthorized)
	ErrNotAuthenticated  = fmt.Errorf("%w: provider account is not connected", ErrCredentialExpired)
	ErrAuthExchange      = fmt.Errorf("authorization exchange failed %w", errors.BadRequest)
)

// ExternalSession is the provider credential bound to a single patient
type ExternalSession struct {
	Id                    *primitive.ObjectID `bson:"_id,omitempty"`
	PatientId             string              `bson:"patientId"`
	Provider              string              `bson:"provider"`
	State                 State               `bson:"state"`
	AccessToken           string              `bson:"accessToken,omitempty"`
	RefreshToken          string              `bson:"refreshToken,omitempty"`
	TokenType             string              `bson:"tokenType,omitempty"`
	Scope                 string              `bson:"scope,omitempty"`
	ExpiresAt             time.Time           `bson:"expiresAt,omitempty"`
	PendingState          string              `bson:"pendingState,omitempty"`
	PendingStateExpiresAt time.Time           `bson:"pendingStateExpiresAt,omitempty"`
	CreatedTime           time.Time           `bson:"createdTime"`
	UpdatedTime           time.Time           `bson:"updatedTime"`
}

// HasCredential returns true if the session holds a token pair
func (e *ExternalSession) HasCredential() bool {
	return e != nil && e.AccessToken != "" && e.RefreshToken != ""
}

// NeedsRefresh returns true if the access token expires within the refresh buffer
func (e *ExternalSession) NeedsRefresh(now time.Time) bool {
	return !now.Before(e.ExpiresAt.Add(-RefreshBuffer))
}

func (e *ExternalSession) setToken(token *oauth2.Token, now time.Time) {
	e.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		e.RefreshToken = token.RefreshToken
	}
	e.TokenType = token.TokenType
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		e.Scope = scope
	}
	e.ExpiresAt = token.Expiry
	if e.ExpiresAt.IsZero() {
		e.ExpiresAt = now.Add(DefaultExpiresIn)
	}
	e.State = StateAuthenticated
}

func (e *ExternalSession) clearCredential() {
	e.AccessToken = ""
	e.RefreshToken = ""
	e.TokenType = ""
	e.ExpiresAt = time.Time{}
	e.State = StateUnauthenticated
}

func (e *ExternalSession) clearPendingState() {
	e.PendingState = ""
	e.PendingStateExpiresAt = time.Time{}
}

// CallbackParams are the query parameters of the authorization redirect
type CallbackParams struct {
	State            string
	Code             string
	Error            string
	ErrorDescription string
}

type Repository interface {
	Get(ctx context.Context, patientId string) (*ExternalSession, error)
	GetByPendingState(ctx context.Context, state string) (*ExternalSession, error)
	Upsert(ctx context.Context, session *ExternalSession) (*ExternalSession, error)
	Delete(ctx context.Context, patientId string) error
	ListAuthenticatedPatientIds(ctx context.Context) ([]string, error)
}
