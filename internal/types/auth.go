// Package types holds the request/response bodies the auth handlers
// parse and return, kept separate from internal/models (the DB row
// shapes) the way goctl-scaffolded services separate the two.
package types

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token       string    `json:"token,omitempty"`
	MFARequired bool      `json:"mfa_required,omitempty"`
	UserID      string    `json:"user_uuid,omitempty"`
	User        *AuthUser `json:"user,omitempty"`
}

type MFALoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFAToken string `json:"mfa_token"`
	UserID   string `json:"user_uuid"`
}

type MFALoginResponse struct {
	Token                          string   `json:"token"`
	User                           AuthUser `json:"user"`
	MFABackupCodeUsed              bool     `json:"mfa_backup_code_used,omitempty"`
	RequiresBackupCodeRegeneration bool     `json:"requires_backup_code_regeneration,omitempty"`
}

type AuthUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

type MFASetupResponse struct {
	Secret     string `json:"secret"`
	OtpauthURL string `json:"otpauth_url"`
}

type MFAVerifyRequest struct {
	Code string `json:"code"`
}

type MFAEnableRequest struct {
	Code string `json:"code"`
}

type MFAEnableResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

type MFADisableRequest struct {
	Code string `json:"code"`
}

type RegenerateBackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

type PasswordResetRequestRequest struct {
	Email string `json:"email"`
}

type PasswordResetCompleteRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}
