// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package notify raises desktop alerts for files the pipeline could not
// segment.
package notify

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/the-hive/segmenter/internal/pipeline"
)

// outageThreshold is the number of consecutive OCR failures after which
// the engines are reported as unavailable.
const outageThreshold = 3

// AlertFunc shows a notification.
type AlertFunc func(title, message, icon string) error

// Notifier watches file results and alerts on failures.
type Notifier struct {
	alert AlertFunc

	mu          sync.Mutex
	ocrFailures int
	outage      bool
}

// New creates a notifier. A nil alert selects beeep.Alert.
func New(alert AlertFunc) *Notifier {
	if alert == nil {
		alert = func(title, message, icon string) error {
			return beeep.Alert(title, message, icon)
		}
	}
	return &Notifier{alert: alert}
}

// Observe inspects one finished file. It matches worker.ResultFunc.
func (n *Notifier) Observe(res pipeline.FileResult, warnings []string) {
	name := filepath.Base(res.Path)

	n.mu.Lock()
	if res.OCRRequired && res.Error != "" {
		n.ocrFailures++
	} else if res.OCRRequired {
		n.ocrFailures = 0
		n.outage = false
	}
	raiseOutage := n.ocrFailures >= outageThreshold && !n.outage
	if raiseOutage {
		n.outage = true
	}
	n.mu.Unlock()

	switch {
	case raiseOutage:
		n.send("OCR Unavailable", fmt.Sprintf("%d files in a row failed every OCR engine. Last error: %s", outageThreshold, res.Error))
	case len(res.Chunks) == 0 && res.Error != "":
		n.send("Segmentation Failed", fmt.Sprintf("%s: %s", name, res.Error))
	case len(warnings) > 0:
		n.send("Chunks Not Stored", fmt.Sprintf("%s: %s", name, warnings[0]))
	}
}

func (n *Notifier) send(title, message string) {
	log.Printf("Notifier: %s: %s", title, message)
	if err := n.alert(title, message, ""); err != nil {
		log.Printf("Notifier: failed to send OS notification: %v", err)
	}
}
