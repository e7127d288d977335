package machine

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

type machineState struct {
	Bus    []byte
	CPU    []byte
	Timers []periodic
	Frames uint64
}

func (m *Machine) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(machineState{
		Bus:    m.bus.SaveState(),
		CPU:    m.cpu.SaveState(),
		Timers: m.timers,
		Frames: m.frames,
	})
	return buf.Bytes()
}

func (m *Machine) LoadState(data []byte) error {
	var s machineState
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	if err := m.bus.LoadState(s.Bus); err != nil {
		return fmt.Errorf("restore memory: %w", err)
	}
	if err := m.cpu.LoadState(s.CPU); err != nil {
		return fmt.Errorf("restore cpu: %w", err)
	}
	m.timers = s.Timers
	m.frames = s.Frames
	m.clock.Reset()
	m.log.WithFields(logrus.Fields{
		"pc":     fmt.Sprintf("%04X", m.cpu.PC),
		"cycles": m.cpu.Cycles(),
	}).Info("state restored")
	return nil
}

func (m *Machine) SaveStateToFile(path string) error {
	data := m.SaveState()
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	m.log.WithField("path", path).Info("state saved")
	return nil
}

func (m *Machine) LoadStateFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.LoadState(data)
}
