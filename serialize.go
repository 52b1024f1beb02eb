package qchain

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
)

/*
Save file layout, all integers little endian:

	magic     4 bytes  "QCHN"
	version   uint16   formatVersion
	hlen      uint32   length of the header
	header    hlen     CBOR encoded fileHeader
	payload   16·N     N amplitudes as (float64 real, float64 imag), global order
	checksum  uint64   xxhash64 of everything above
*/
const (
	fileMagic     = "QCHN"
	formatVersion = uint16(1)

	preambleSize  = len(fileMagic) + 2 + 4
	checksumSize  = 8
	amplitudeSize = 16
)

type fileHeader struct {
	Subspace  Descriptor `cbor:"subspace"`
	Dimension uint64     `cbor:"dimension"`
}

/*
Save writes the state to path. The root rank gathers the amplitudes, encodes
them with the subspace descriptor and replaces path atomically; the outcome is
shared so every rank returns the same error class.
*/
func (s *State) Save(path string) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}

	amps, err := s.vec.GatherToRoot()
	if err != nil {
		return err
	}

	var writeErr error
	if s.comm.IsRoot() {
		writeErr = writeStateFile(path, s.subspace, amps)
		if writeErr == nil {
			s.comm.metrics.recordSave()
			s.comm.Logger().Debug("saved state", "path", path, "dimension", len(amps))
		}
	}

	return agreeOnError(s.comm, writeErr)
}

/*
Load reads a state written by Save. The root rank reads and validates the whole
file before anything is allocated; a file that fails any check yields
ErrFormat on every rank and no State.
*/
func Load(comm *Comm, path string) (*State, error) {
	var result *decodedState
	if comm.IsRoot() {
		sub, amps, err := readStateFile(path)
		result = &decodedState{subspace: sub, amplitudes: amps, err: err}
	}

	result, err := Broadcast(comm, result)
	if err != nil {
		return nil, err
	}
	if result.err != nil {
		return nil, result.err
	}

	s, err := NewState(comm, WithSubspace(result.subspace))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	start, end := s.vec.OwnershipRange()
	copy(s.vec.Local(), result.amplitudes[start:end])
	if err := s.vec.Assemble(); err != nil {
		return nil, err
	}

	if comm.IsRoot() {
		comm.metrics.recordLoad()
		comm.Logger().Debug("loaded state", "path", path, "dimension", len(result.amplitudes))
	}

	s.initialized = true
	return s, nil
}

type decodedState struct {
	subspace   Subspace
	amplitudes []complex128
	err        error
}

func writeStateFile(path string, sub Subspace, amps []complex128) error {
	data, err := encodeState(sub, amps)
	if err != nil {
		return err
	}

	dir, base := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

func readStateFile(path string) (Subspace, []complex128, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s: %v", ErrFormat, path, err)
	}
	return decodeState(data)
}

func encodeState(sub Subspace, amps []complex128) ([]byte, error) {
	if uint64(len(amps)) != sub.Dimension() {
		return nil, fmt.Errorf(
			"%w: %d amplitudes for a subspace of dimension %d", ErrValidation, len(amps), sub.Dimension(),
		)
	}

	header, err := cbor.Marshal(fileHeader{
		Subspace:  sub.Descriptor(),
		Dimension: sub.Dimension(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode state header: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(preambleSize + len(header) + amplitudeSize*len(amps) + checksumSize)

	buf.WriteString(fileMagic)
	buf.Write(binary.LittleEndian.AppendUint16(nil, formatVersion))
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(header))))
	buf.Write(header)

	var word [8]byte
	for _, a := range amps {
		binary.LittleEndian.PutUint64(word[:], math.Float64bits(real(a)))
		buf.Write(word[:])
		binary.LittleEndian.PutUint64(word[:], math.Float64bits(imag(a)))
		buf.Write(word[:])
	}

	binary.LittleEndian.PutUint64(word[:], xxhash.Sum64(buf.Bytes()))
	buf.Write(word[:])

	return buf.Bytes(), nil
}

func decodeState(data []byte) (Subspace, []complex128, error) {
	if len(data) < preambleSize+checksumSize {
		return nil, nil, fmt.Errorf("%w: file too short (%d bytes)", ErrFormat, len(data))
	}
	if string(data[:len(fileMagic)]) != fileMagic {
		return nil, nil, fmt.Errorf("%w: not a state file", ErrFormat)
	}

	body, trailer := data[:len(data)-checksumSize], data[len(data)-checksumSize:]
	if xxhash.Sum64(body) != binary.LittleEndian.Uint64(trailer) {
		return nil, nil, fmt.Errorf("%w: checksum mismatch", ErrFormat)
	}

	version := binary.LittleEndian.Uint16(data[4:6])
	if version != formatVersion {
		return nil, nil, fmt.Errorf("%w: unsupported format version %d", ErrFormat, version)
	}

	hlen := int(binary.LittleEndian.Uint32(data[6:10]))
	if hlen > len(body)-preambleSize {
		return nil, nil, fmt.Errorf("%w: header length %d exceeds file", ErrFormat, hlen)
	}

	var header fileHeader
	if err := cbor.Unmarshal(body[preambleSize:preambleSize+hlen], &header); err != nil {
		return nil, nil, fmt.Errorf("%w: decode header: %v", ErrFormat, err)
	}

	sub, err := FromDescriptor(header.Subspace)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if sub.Dimension() != header.Dimension {
		return nil, nil, fmt.Errorf(
			"%w: header dimension %d does not match subspace dimension %d", ErrFormat, header.Dimension, sub.Dimension(),
		)
	}

	payload := body[preambleSize+hlen:]
	if len(payload)%amplitudeSize != 0 || uint64(len(payload)/amplitudeSize) != header.Dimension {
		return nil, nil, fmt.Errorf(
			"%w: payload holds %d bytes, expected %d amplitudes", ErrFormat, len(payload), header.Dimension,
		)
	}

	amps := make([]complex128, header.Dimension)
	for i := range amps {
		off := i * amplitudeSize
		re := math.Float64frombits(binary.LittleEndian.Uint64(payload[off:]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(payload[off+8:]))
		amps[i] = complex(re, im)
	}

	return sub, amps, nil
}
