package tui

import (
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/queue"
)

type queueLoadedMsg struct {
	queue *queue.Queue
	// note replaces the status line once the queue is shown.
	note string
}

type invoiceLoadedMsg struct {
	detail *model.InvoiceDetail
}

type reconciledMsg struct {
	summary engine.Summary
}

type errorMsg struct {
	err error
}
