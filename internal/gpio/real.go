//go:build linux

package gpio

import (
	"context"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealLine waits for edges on an actual line via the GPIO character device.
type RealLine struct {
	offset int
	line   *gpiocdev.Line
	edges  chan struct{}
}

// RequestLines requests every offset on the chip as an edge-watched input.
// On failure the lines already requested are released.
func RequestLines(chipName string, offsets []int, opts Options) ([]*RealLine, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	defer chip.Close()

	lines := make([]*RealLine, 0, len(offsets))
	for _, off := range offsets {
		l, err := requestLine(chip, off, opts)
		if err != nil {
			for _, done := range lines {
				done.Close()
			}
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, nil
}

func requestLine(chip *gpiocdev.Chip, offset int, opts Options) (*RealLine, error) {
	rl := &RealLine{
		offset: offset,
		edges:  make(chan struct{}, 1),
	}

	consumer := opts.Consumer
	if consumer == "" {
		consumer = "prop-controller"
	}

	reqOpts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithConsumer(consumer),
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(rl.handle),
	}
	switch opts.Bias {
	case BiasPullUp:
		reqOpts = append(reqOpts, gpiocdev.WithPullUp)
	case BiasPullDown:
		reqOpts = append(reqOpts, gpiocdev.WithPullDown)
	case BiasDisabled:
		reqOpts = append(reqOpts, gpiocdev.WithBiasDisabled)
	}
	if opts.ActiveLow {
		reqOpts = append(reqOpts, gpiocdev.AsActiveLow)
	}

	line, err := chip.RequestLine(offset, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("request line %d: %w", offset, err)
	}
	rl.line = line
	return rl, nil
}

// handle runs on the gpiocdev event goroutine and must not block.
func (l *RealLine) handle(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventRisingEdge {
		return
	}
	select {
	case l.edges <- struct{}{}:
	default:
	}
}

// WaitRisingEdge blocks until the next rising edge.
func (l *RealLine) WaitRisingEdge(ctx context.Context) error {
	if l.line == nil {
		return ErrClosed
	}

	// Discard an edge that arrived before this wait started.
	select {
	case <-l.edges:
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.edges:
		return nil
	}
}

// Offset returns the line offset on its chip.
func (l *RealLine) Offset() int {
	return l.offset
}

// Close releases the line.
func (l *RealLine) Close() error {
	if l.line == nil {
		return nil
	}
	err := l.line.Close()
	l.line = nil
	if err != nil {
		return fmt.Errorf("close line %d: %w", l.offset, err)
	}
	return nil
}
