// Package services holds cross-cutting helpers shared by the external
// collaborator clients and the pipeline stages: the error taxonomy used to
// classify failures as stage-fatal or fail-soft, and context annotations that
// flow run and stage identity into structured logs.
package services
