package http

import "github.com/aretw0/strata/pkg/domain"

// CodeBadRequest is reported for bodies that fail to decode or validate.
const CodeBadRequest = "BAD_REQUEST"

// Revert targets.
const (
	RevertToParent  = "parent"
	RevertToDefault = "default"
)

type CreatePipelineRequest struct {
	Name     string `json:"name" validate:"required"`
	ParentID string `json:"parent_id,omitempty"`
}

type CreateElementRequest struct {
	ParentID string `json:"parent_id" validate:"required"`
	Type     string `json:"type" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

type ParentRequest struct {
	ParentID string `json:"parent_id" validate:"required"`
}

type SetPropertyRequest struct {
	Type  string `json:"type" validate:"required,oneof=boolean entity integer long string"`
	Value any    `json:"value"`
}

type RevertRequest struct {
	To string `json:"to" validate:"required,oneof=parent default"`
}

type PipelineView struct {
	Document *domain.Document `json:"document"`
	Merged   domain.MergedView `json:"merged"`
}

type EditResponse struct {
	Pipeline domain.Pipeline    `json:"pipeline"`
	Diff     *domain.MergedDiff `json:"diff"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
