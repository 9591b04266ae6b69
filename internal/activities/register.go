package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListDocumentsActivity)
	w.RegisterActivity(a.ProcessDocumentActivity)
	w.RegisterActivity(a.ListQuestionRowsActivity)
	w.RegisterActivity(a.ProcessQuestionRowActivity)
	w.RegisterActivity(a.WriteRunSummaryActivity)
}
