package domain

// Action describes what a trigger does when it fires.
// The set of variants is closed; every consumer switches exhaustively
// and treats an unknown variant as an error.
type Action interface {
	isAction()
}

// CreateTask files a task with the downstream executor.
type CreateTask struct {
	Priority string
}

// CreateWorkflow starts a workflow from a template reference.
type CreateWorkflow struct {
	TemplateRef string
}

// Notify performs no downstream call; the firing is only logged.
type Notify struct{}

func (CreateTask) isAction()     {}
func (CreateWorkflow) isAction() {}
func (Notify) isAction()         {}
