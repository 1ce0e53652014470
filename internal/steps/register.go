package steps

import (
	"github.com/prkeeper/prkeeper/internal/core/pipeline"
)

// RegisterAll registers all built-in steps with the registry.
func RegisterAll(r *pipeline.Registry) {
	r.Register("changes", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewChanges(deps), nil
	})

	r.Register("rules", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewRules(deps), nil
	})

	r.Register("labels", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewLabels(deps), nil
	})

	r.Register("milestone", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewMilestone(deps), nil
	})
}
