// Package svc wires every component the collaboration core's handlers
// depend on: the database and Redis connections, the repository layer
// built on top of them, the Session Authority, the Event Bus, the CRDT
// Document Store, the Change Coordinator, the documentation search
// indexer, and the HTTP middleware stack. One ServiceContext is built
// once at start-up and passed to every handler.
package svc

import (
	"context"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/config"
	"github.com/nosdesk/collab-core/internal/coordinator"
	"github.com/nosdesk/collab-core/internal/crdt"
	"github.com/nosdesk/collab-core/internal/credential"
	"github.com/nosdesk/collab-core/internal/eventbus"
	"github.com/nosdesk/collab-core/internal/middleware"
	"github.com/nosdesk/collab-core/internal/models"
	"github.com/nosdesk/collab-core/internal/repository"
	"github.com/nosdesk/collab-core/internal/search"
	"github.com/nosdesk/collab-core/internal/session"
	"github.com/nosdesk/collab-core/third_party/cache"
	"github.com/nosdesk/collab-core/third_party/database"
	thirdsearch "github.com/nosdesk/collab-core/third_party/search"
)

type ServiceContext struct {
	Config config.Config

	Users       *repository.UserRepository
	Sessions    *repository.SessionRepository
	Documents   *repository.DocumentRepository
	ResetTokens *repository.ResetTokenRepository
	Tickets     *repository.TicketRepository
	Comments    *repository.CommentRepository

	SessionManager *session.Manager
	Handshakes     *session.HandshakeStore
	MasterKey      *credential.MasterKey

	EventBus  *eventbus.Bus
	DocStore  *crdt.Store
	Coord     *coordinator.Coordinator
	Indexer   *search.Indexer

	Auth      *middleware.AuthMiddleware
	RateLimit *middleware.RateLimiter
}

func NewServiceContext(c config.Config) *ServiceContext {
	db, err := database.NewPostgresConnection(c.Database)
	mustNoErr(err, "svc: connect postgres")
	redisClient, err := cache.NewRedisClient(c.Redis)
	mustNoErr(err, "svc: connect redis")
	rawRedisClient, err := cache.NewRawRedisClient(c.Redis)
	mustNoErr(err, "svc: connect redis (raw client)")
	meili, err := thirdsearch.NewMeiliSearchConnection(c.MeiliSearch)
	mustNoErr(err, "svc: connect meilisearch")

	base := repository.NewBaseRepository(db)
	users := repository.NewUserRepository(base)
	sessions := repository.NewSessionRepository(base)
	documents := repository.NewDocumentRepository(base)
	resetTokens := repository.NewResetTokenRepository(base)
	tickets := repository.NewTicketRepository(base)
	comments := repository.NewCommentRepository(base)

	masterKey, err := credential.ParseMasterKey(c.Auth.MFAEncryptionKey)
	mustNoErr(err, "svc: parse MFA_ENCRYPTION_KEY")

	sessionCache := session.NewRedisCache(rawRedisClient)
	sessionManager := session.NewManager(session.Config{
		JWTSecret:            c.Auth.JWTSecret,
		AccessTokenTTL:       c.Auth.AccessTokenTTL,
		RefreshTokenTTL:      c.Auth.RefreshTokenTTL,
		SessionInactivityTTL: c.Auth.SessionInactivityTTL,
	}, sessions, users, sessionCache)

	bus := eventbus.New()
	docStore := crdt.NewStore(documents)
	indexer := search.NewIndexer(meili)
	docStore.OnDocPageRevision(func(targetID uuid.UUID, revisionNumber int) {
		indexer.IndexDocPageAsync(func(ctx context.Context) (*models.DocumentationPage, error) {
			return documents.GetDocPage(ctx, targetID)
		})
	})

	// base, not documents, is the coordinator's Transactor: *BaseRepository
	// satisfies that interface directly, so the coordinator isn't tied to
	// any one concrete repository and can stage events from any mutation
	// path that shares the same Postgres connection pool.
	coord := coordinator.New(base, bus)

	return &ServiceContext{
		Config:      c,
		Users:       users,
		Sessions:    sessions,
		Documents:   documents,
		ResetTokens: resetTokens,
		Tickets:     tickets,
		Comments:    comments,

		SessionManager: sessionManager,
		Handshakes:     session.NewHandshakeStore(),
		MasterKey:      masterKey,

		EventBus: bus,
		DocStore: docStore,
		Coord:    coord,
		Indexer:  indexer,

		Auth:      middleware.NewAuthMiddleware(sessionManager),
		RateLimit: middleware.NewRateLimiter(redisClient),
	}
}

// mustNoErr terminates start-up on an unrecoverable wiring failure, the
// same fail-fast posture rest.MustNewServer and zrpc.MustNewClient take
// for their own required dependencies.
func mustNoErr(err error, context string) {
	if err != nil {
		logx.Errorf("%s: %v", context, err)
		panic(err)
	}
}
