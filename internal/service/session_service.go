package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

type sessionPoller interface {
	Start(ctx context.Context)
	Stop()
	SetVisible(visible bool)
	Running() bool
}

type replayRequester interface {
	RequestReplay()
}

// SessionConfig defines token and administrator settings.
type SessionConfig struct {
	Secret            string
	Expiry            time.Duration
	Issuer            string
	AdminEmail        string
	AdminPasswordHash string
}

type activeSession struct {
	id       string
	identity models.Identity
	issuedAt time.Time
}

// SessionService owns the single active session of this device and the polling lifecycle tied to it.
type SessionService struct {
	state     *StateStore
	settings  *SyncSettings
	puller    snapshotPuller
	poller    sessionPoller
	outbox    replayRequester
	validator *validator.Validate
	logger    *zap.Logger
	config    SessionConfig
	now       func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	active *activeSession
}

// NewSessionService wires the session to the poller and reacts to sync URL changes.
func NewSessionService(state *StateStore, settings *SyncSettings, puller snapshotPuller, poller sessionPoller, outbox replayRequester, validate *validator.Validate, logger *zap.Logger, config SessionConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.Expiry <= 0 {
		config.Expiry = 12 * time.Hour
	}
	config.AdminEmail = strings.ToLower(strings.TrimSpace(config.AdminEmail))
	ctx, cancel := context.WithCancel(context.Background())
	svc := &SessionService{
		state:     state,
		settings:  settings,
		puller:    puller,
		poller:    poller,
		outbox:    outbox,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       time.Now,
		baseCtx:   ctx,
		cancel:    cancel,
	}
	settings.OnChange(svc.onSyncURLChange)
	return svc
}

// Login opens a session, replacing any existing one, and starts polling when a sync URL is known.
func (s *SessionService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	syncURL, err := s.settings.Resolve(ctx, req.SyncURL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve sync url")
	}

	identity, err := s.authenticate(ctx, req, syncURL)
	if err != nil {
		return nil, err
	}

	issuedAt := s.now().UTC()
	session := &activeSession{id: uuid.NewString(), identity: identity, issuedAt: issuedAt}
	token, err := s.generateToken(session)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session token")
	}

	s.mu.Lock()
	replaced := s.active != nil
	s.active = session
	s.mu.Unlock()

	if syncURL != "" {
		s.poller.Start(s.baseCtx)
	}
	if s.outbox != nil {
		s.outbox.RequestReplay()
	}

	s.logger.Info("session opened",
		zap.String("user_id", identity.UserID),
		zap.String("role", string(identity.Role)),
		zap.Bool("replaced", replaced))

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.Expiry.Seconds()),
		User:        identity,
		SyncURL:     syncURL,
		IssuedAt:    issuedAt,
	}, nil
}

// Logout ends the session identified by sessionID and stops polling.
func (s *SessionService) Logout(sessionID string) error {
	s.mu.Lock()
	if s.active == nil || s.active.id != sessionID {
		s.mu.Unlock()
		return appErrors.ErrNoSession
	}
	identity := s.active.identity
	s.active = nil
	s.mu.Unlock()

	s.poller.Stop()
	s.logger.Info("session closed", zap.String("user_id", identity.UserID))
	return nil
}

// Current returns the identity of the active session.
func (s *SessionService) Current() (models.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return models.Identity{}, false
	}
	return s.active.identity, true
}

// Polling reports whether the scheduler is running.
func (s *SessionService) Polling() bool {
	return s.poller.Running()
}

// SetVisible forwards client visibility changes to the poller.
func (s *SessionService) SetVisible(visible bool) {
	s.poller.SetVisible(visible)
}

// ValidateToken parses a session token and checks it belongs to the active session.
func (s *SessionService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active == nil || active.id != claims.SessionID {
		return nil, appErrors.Clone(appErrors.ErrNoSession, "session has ended")
	}
	return claims, nil
}

// Close ends polling for good.
func (s *SessionService) Close() {
	s.poller.Stop()
	s.cancel()
}

func (s *SessionService) authenticate(ctx context.Context, req models.LoginRequest, syncURL string) (models.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if s.config.AdminEmail != "" && email == s.config.AdminEmail {
		if s.config.AdminPasswordHash == "" {
			return models.Identity{}, appErrors.Clone(appErrors.ErrInvalidCredentials, "administrator login disabled")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(s.config.AdminPasswordHash), []byte(req.Password)); err != nil {
			return models.Identity{}, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return models.Identity{UserID: "admin", Email: email, Name: "Administrator", Role: models.RoleAdmin}, nil
	}

	teacher, ok := models.FindTeacherByEmail(s.state.State().Teachers, email)
	if !ok && syncURL != "" {
		// The registry may not have been fetched on this device yet.
		if err := s.puller.Pull(ctx, true); err != nil && !errors.Is(err, appErrors.ErrInvalidSyncURL) {
			s.logger.Warn("registry refresh before login failed", zap.Error(err))
		}
		teacher, ok = models.FindTeacherByEmail(s.state.State().Teachers, email)
	}
	if !ok {
		return models.Identity{}, appErrors.Clone(appErrors.ErrInvalidCredentials, "email is not in the faculty registry")
	}
	return models.Identity{UserID: teacher.ID, Email: teacher.Email, Name: teacher.Name, Role: models.RoleTeacher}, nil
}

func (s *SessionService) generateToken(session *activeSession) (string, error) {
	expiresAt := session.issuedAt.Add(s.config.Expiry)
	claims := &models.JWTClaims{
		UserID:    session.identity.UserID,
		Role:      session.identity.Role,
		Email:     session.identity.Email,
		FullName:  session.identity.Name,
		SessionID: session.id,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.id,
			Issuer:    s.config.Issuer,
			Subject:   session.identity.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(session.issuedAt),
			NotBefore: jwt.NewNumericDate(session.issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

func (s *SessionService) onSyncURLChange(url string) {
	if url == "" {
		s.poller.Stop()
		return
	}
	s.mu.Lock()
	active := s.active != nil
	s.mu.Unlock()
	if active {
		s.poller.Start(s.baseCtx)
	}
}
