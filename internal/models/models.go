// Package models holds the data-model structs for the collaboration
// core: identity/session rows and the CRDT document rows.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role enumerates the three user roles the core cares about for session and
// access-token claims. The richer profile/permission system lives outside
// the core.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
	RoleUser       Role = "user"
)

// User is the identity row the Credential Store and Session Authority act
// on. EncryptedTOTPSecret is the hex-encoded nonce||ciphertext||tag form;
// it is never deserialized to plaintext outside internal/credential.
type User struct {
	ID                  uuid.UUID `db:"id"`
	DisplayName         string    `db:"display_name"`
	Email               string    `db:"email"`
	Role                Role      `db:"role"`
	EncryptedTOTPSecret *string   `db:"encrypted_totp_secret"`
	MFAEnabled          bool      `db:"mfa_enabled"`
	PasswordChangedAt   time.Time `db:"password_changed_at"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

// AuthIdentityProvider is the provider_type half of AuthIdentity's unique key.
type AuthIdentityProvider string

const (
	ProviderLocal AuthIdentityProvider = "local"
	ProviderOAuth AuthIdentityProvider = "oauth"
)

// AuthIdentity is unique on (ProviderType, ExternalID). For provider_type
// "local" PasswordHash carries the bcrypt hash; OAuth identities instead
// populate Metadata and leave PasswordHash empty.
type AuthIdentity struct {
	ID           uuid.UUID            `db:"id"`
	UserID       uuid.UUID            `db:"user_id"`
	ProviderType AuthIdentityProvider `db:"provider_type"`
	ExternalID   string               `db:"external_id"`
	PasswordHash string               `db:"password_hash"`
	Metadata     []byte               `db:"metadata"` // opaque JSON
	CreatedAt    time.Time            `db:"created_at"`
}

// BackupCode is one individually-hashed one-shot MFA backup code.
type BackupCode struct {
	ID         uuid.UUID  `db:"id"`
	UserID     uuid.UUID  `db:"user_id"`
	CodeHash   string     `db:"code_hash"`
	ConsumedAt *time.Time `db:"consumed_at"`
	CreatedAt  time.Time  `db:"created_at"`
}

// Session is the server-side record keyed by its own random id; each
// RefreshToken row points at it through SessionID. A session is valid iff
// it exists, is unexpired,
// unrevoked, and was issued at-or-after the user's password_changed_at
// (enforced by internal/session, not by the DB).
type Session struct {
	ID           uuid.UUID  `db:"id"`
	UserID       uuid.UUID  `db:"user_id"`
	IssuedAt     time.Time  `db:"issued_at"`
	ExpiresAt    time.Time  `db:"expires_at"`
	LastActive   time.Time  `db:"last_active"`
	IP           string     `db:"ip"`
	UserAgent    string     `db:"user_agent"`
	DeviceLabel  string     `db:"device_label"`
	IsCurrent    bool       `db:"is_current"`
	RevokedAt    *time.Time `db:"revoked_at"`
}

// RefreshToken is stored as a SHA-256 hash; the plaintext never touches the
// database. RevokedAt is set the moment the token is rotated, consumed, or
// caught in reuse detection.
type RefreshToken struct {
	ID        uuid.UUID  `db:"id"`
	TokenHash string     `db:"token_hash"`
	UserID    uuid.UUID  `db:"user_id"`
	SessionID uuid.UUID  `db:"session_id"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// ResetTokenKind distinguishes password-reset from MFA-reset flows sharing
// one table.
type ResetTokenKind string

const (
	ResetKindPassword ResetTokenKind = "password_reset"
	ResetKindMFA       ResetTokenKind = "mfa_reset"
)

// ResetToken is keyed by its own hash (the PK).
type ResetToken struct {
	TokenHash string         `db:"token_hash"`
	UserID    uuid.UUID      `db:"user_id"`
	Kind      ResetTokenKind `db:"kind"`
	ExpiresAt time.Time      `db:"expires_at"`
	UsedAt    *time.Time     `db:"used_at"`
	Metadata  []byte         `db:"metadata"`
	CreatedAt time.Time      `db:"created_at"`
}

// DocTargetKind distinguishes the two kinds of CRDT target (ticket article
// body vs. documentation page) that share the same revision mechanics.
type DocTargetKind string

const (
	TargetTicketArticle DocTargetKind = "ticket_article"
	TargetDocPage       DocTargetKind = "doc_page"
)

// PageStatus is the publication state of a DocumentationPage.
type PageStatus string

const (
	PageDraft     PageStatus = "draft"
	PagePublished PageStatus = "published"
	PageArchived  PageStatus = "archived"
)

// ArticleContent owns the live Y-doc binary state for one ticket, one-to-one
// with the ticket id.
type ArticleContent struct {
	ID                    uuid.UUID `db:"id"`
	TicketID              uuid.UUID `db:"ticket_id"`
	YjsDocumentContent    []byte    `db:"yjs_document_content"`
	YjsStateVector        []byte    `db:"yjs_state_vector"`
	CurrentRevisionNumber int       `db:"current_revision_number"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

// DocumentationPage additionally forms a tree via ParentID.
type DocumentationPage struct {
	ID                    uuid.UUID  `db:"id"`
	ParentID              *uuid.UUID `db:"parent_id"`
	DisplayOrder          int        `db:"display_order"`
	Slug                  string     `db:"slug"`
	Icon                  string     `db:"icon"`
	Status                PageStatus `db:"status"`
	Title                 string     `db:"title"`
	YjsDocumentContent    []byte     `db:"yjs_document_content"`
	YjsStateVector        []byte     `db:"yjs_state_vector"`
	CurrentRevisionNumber int        `db:"current_revision_number"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

// Ticket is the minimal ticket row this core mutates directly: the
// fields a PATCH can change and broadcast as ticket-updated. The rest of
// a ticket's profile (device links, project assignment, the full field
// set) belongs to the external collaborator this core treats as an
// opaque SQL-backed repository.
type Ticket struct {
	ID         uuid.UUID  `db:"id"`
	Title      string     `db:"title"`
	Status     string     `db:"status"`
	AssignedTo *uuid.UUID `db:"assigned_to"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

// Comment is a ticket comment. Inserts and deletes run inside the Change
// Coordinator so a comment-added/comment-deleted broadcast can never
// reach a subscriber ahead of the transaction that wrote it committing.
type Comment struct {
	ID        uuid.UUID `db:"id"`
	TicketID  uuid.UUID `db:"ticket_id"`
	AuthorID  uuid.UUID `db:"author_id"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

// Revision is a point-in-time, self-contained snapshot of a target's full
// Yjs update, unique on (TargetID, RevisionNumber). ContributedBy is
// written unordered and may contain duplicates: it is a multiset of
// editors since the previous revision, not a deduplicated set.
type Revision struct {
	ID             uuid.UUID     `db:"id"`
	TargetID       uuid.UUID     `db:"target_id"`
	TargetKind     DocTargetKind `db:"target_kind"`
	RevisionNumber int           `db:"revision_number"`
	YjsStateVector []byte        `db:"yjs_state_vector"`
	YjsDocumentContent []byte    `db:"yjs_document_content"`
	ContributedBy  []uuid.UUID   `db:"contributed_by"`
	RestoredFrom   *int          `db:"restored_from"`
	CreatedAt      time.Time     `db:"created_at"`
}
