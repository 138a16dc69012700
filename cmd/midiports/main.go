package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"midi-bridge/mediation"
	"midi-bridge/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = listPorts()
	case "monitor":
		err = monitor(os.Args[2:])
	case "mappings":
		err = listMappings()
	case "poll":
		pollPorts()
	default:
		usage()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("MIDI port tools")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                 - List MIDI input ports")
	fmt.Println("  monitor <index...>   - Print parsed events and the messages they produce")
	fmt.Println("  mappings             - List devices with a built-in knob mapping")
	fmt.Println("  poll                 - Poll for port changes")
}

func listPorts() error {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Printf("(waiting up to %s...)\n", midi.ScanTimeout)

	ins, err := midi.InPorts()
	if err != nil {
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return err
	}
	for _, p := range midi.Describe(ins) {
		fmt.Printf("  %d: %s\n", p.Index, p.Name)
	}
	return nil
}

// printSink runs every event through an engine and prints the result.
type printSink struct {
	engine *mediation.Engine
}

func (s printSink) Push(pe midi.PortEvent) {
	msgs, err := s.engine.Process(pe.Port, pe.Event)
	if err != nil {
		fmt.Printf("[%d] %s: %v\n", pe.Port, pe.Event, err)
		return
	}
	fmt.Printf("[%d] %s\n", pe.Port, pe.Event)
	for _, msg := range msgs[1:] {
		fmt.Printf("      -> %-13s %s\n", msg.Topic(), msg.Summary())
	}
}

func monitor(args []string) error {
	var requested []int
	for _, a := range args {
		idx, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("invalid port index %q", a)
		}
		requested = append(requested, idx)
	}

	ins, err := midi.InPorts()
	if err != nil {
		return err
	}
	ports, err := midi.SelectPorts(ins, requested)
	if err != nil {
		return err
	}

	mappings, err := mediation.DefaultMappings()
	if err != nil {
		return err
	}
	engine := mediation.New(zap.NewNop(), mediation.Options{Mappings: mappings})

	// Listener callbacks run on driver goroutines, so serialise them.
	queue := mediation.NewQueue(mediation.DefaultQueueSize, zap.NewNop(), nil)
	sink := printSink{engine: engine}
	for _, p := range ports {
		engine.AddPort(p.Index, p.Name)
		stop, err := midi.Listen(p.Index, ins[p.Index], queue)
		if err != nil {
			return err
		}
		defer stop()
		fmt.Printf("Listening on %d: %s\n", p.Index, p.Name)
	}
	fmt.Println("Ctrl+C to exit.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	for {
		select {
		case pe := <-queue.C():
			sink.Push(pe)
		case <-sig:
			return nil
		}
	}
}

func listMappings() error {
	table, err := mediation.DefaultMappings()
	if err != nil {
		return err
	}
	for _, d := range table {
		fmt.Printf("%s (%d knobs)\n", d.Name, len(d.Knobs))
	}
	return nil
}

func pollPorts() {
	fmt.Println("Polling for port changes every 2 seconds...")
	fmt.Println("Connect/disconnect devices to test. Ctrl+C to exit.")

	last := ""
	for {
		ins, err := midi.InPorts()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			time.Sleep(2 * time.Second)
			continue
		}

		var names []string
		for _, p := range midi.Describe(ins) {
			names = append(names, p.Name)
		}

		current := strings.Join(names, ",")
		if current != last {
			fmt.Printf("\n[%s] Port change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", names)
			last = current
		}

		time.Sleep(2 * time.Second)
	}
}
