package domain

import (
	"encoding/json"
	"time"
)

// Audit actions recorded for control-plane mutations.
const (
	AuditAccountCreate  = "account.create"
	AuditAccountUpdate  = "account.update"
	AuditAccountDelete  = "account.delete"
	AuditCookiesUpload  = "account.cookies"
	AuditWorkerStart    = "worker.start"
	AuditWorkerStop     = "worker.stop"
	AuditWorkerRestart  = "worker.restart"
	AuditSettingsWrite  = "config.settings"
	AuditTemplatesWrite = "config.templates"
	AuditKeywordsWrite  = "config.keywords"
	AuditMediaUpload    = "media.upload"
	AuditMediaDelete    = "media.delete"
	AuditMediaAssign    = "media.assign"
)

// AuditEvent records one control-plane mutation for the config history.
type AuditEvent struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Action    string          `json:"action"`
	Actor     string          `json:"actor,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
