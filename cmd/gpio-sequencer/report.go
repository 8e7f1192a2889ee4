package main

import (
	"fmt"
	"io"
	"log"

	"github.com/sweeney/gpio-sequencer/internal/engine"
	"github.com/sweeney/gpio-sequencer/internal/mqtt"
	"github.com/sweeney/gpio-sequencer/internal/status"
)

// reporter fans engine reports out to the console, the status tracker and
// MQTT. It runs on the engine goroutine.
type reporter struct {
	out        io.Writer
	tracker    *status.Tracker
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
}

func (r *reporter) Event(e engine.Event) {
	switch e.Type {
	case engine.EventDetected:
		fmt.Fprintf(r.out, "Object detected! Count = %d\n", e.Count)
	case engine.EventReading:
		fmt.Fprintf(r.out, "Current Temperature: %.2f °C\n", e.Value)
	case engine.EventOverheat:
		fmt.Fprintln(r.out, "Warning: Temperature limit exceeded!")
	}

	r.tracker.RecordEvent(e)
	if err := r.publisher.Publish(e); err != nil {
		// Don't stop the engine on publish failure
		log.Printf("publish error: %v", err)
	}
}

func (r *reporter) Cycle(s engine.CycleStatus) {
	r.tracker.Update(s)
	if r.mqttStatus != nil {
		r.tracker.SetMQTTConnected(r.mqttStatus.IsConnected())
	}
}
