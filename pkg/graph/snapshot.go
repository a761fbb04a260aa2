package graph

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"

	"tmcroute/pkg/access"

	"github.com/klauspost/compress/flate"
)

const (
	snapshotMagic   = "TMCROUTE"
	snapshotVersion = uint32(1)
	maxNodes        = 10_000_000
	maxEdges        = 50_000_000
)

// snapshotHeader is the logical (pre-compression) binary header.
type snapshotHeader struct {
	Magic    [8]byte
	Version  uint32
	NumNodes uint32
	NumEdges uint32
}

// WriteSnapshot serializes a RoutingData to a DEFLATE-compressed,
// CRC32-checked binary file, written atomically (temp file + rename).
func WriteSnapshot(path string, rd *RoutingData) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // clean up on error
	}()

	fw, err := flate.NewWriter(f, flate.DefaultCompression)
	if err != nil {
		return fmt.Errorf("new flate writer: %w", err)
	}

	crcW := &crc32Writer{w: fw, hash: crc32.NewIEEE()}

	numNodes := rd.NumNodes()
	numEdges := rd.NumEdges()

	hdr := snapshotHeader{Version: snapshotVersion, NumNodes: numNodes, NumEdges: numEdges}
	copy(hdr.Magic[:], snapshotMagic)
	if err := binary.Write(crcW, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := writeInt64Slice(crcW, rd.DenseToOSM); err != nil {
		return fmt.Errorf("write DenseToOSM: %w", err)
	}

	nodeLat := make([]float64, numNodes)
	nodeLon := make([]float64, numNodes)
	for i, id := range rd.DenseToOSM {
		info := rd.OSMToNode[id]
		nodeLat[i] = info.Lat
		nodeLon[i] = info.Lon
	}
	if err := writeFloat64Slice(crcW, nodeLat); err != nil {
		return fmt.Errorf("write NodeLat: %w", err)
	}
	if err := writeFloat64Slice(crcW, nodeLon); err != nil {
		return fmt.Errorf("write NodeLon: %w", err)
	}

	if err := writeUint32Slice(crcW, rd.Offset); err != nil {
		return fmt.Errorf("write Offset: %w", err)
	}

	// Edges are stored column-wise (struct-of-arrays) so each column can
	// use the same zero-copy primitive-slice I/O as everything else.
	targets := make([]uint32, numEdges)
	lengths := make([]float64, numEdges)
	speeds := make([]float64, numEdges)
	accessFlags := make([]uint32, numEdges)
	for i, e := range rd.Edges {
		targets[i] = e.Target
		lengths[i] = e.LengthM
		speeds[i] = e.SpeedMPS
		accessFlags[i] = uint32(e.Access)
	}
	if err := writeUint32Slice(crcW, targets); err != nil {
		return fmt.Errorf("write edge targets: %w", err)
	}
	if err := writeFloat64Slice(crcW, lengths); err != nil {
		return fmt.Errorf("write edge lengths: %w", err)
	}
	if err := writeFloat64Slice(crcW, speeds); err != nil {
		return fmt.Errorf("write edge speeds: %w", err)
	}
	if err := writeUint32Slice(crcW, accessFlags); err != nil {
		return fmt.Errorf("write edge access flags: %w", err)
	}

	if err := writeTMCToEdges(crcW, rd.TMCToEdges); err != nil {
		return fmt.Errorf("write TMCToEdges: %w", err)
	}
	if err := writeTMCNext(crcW, rd.TMCNext); err != nil {
		return fmt.Errorf("write TMCNext: %w", err)
	}

	checksum := crcW.hash.Sum32()

	if err := fw.Close(); err != nil {
		return fmt.Errorf("flush compressed stream: %w", err)
	}
	// The CRC32 trailer sits after the compressed block, uncompressed —
	// readable without re-inflating the body.
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

// ReadSnapshot deserializes a RoutingData previously written by WriteSnapshot.
func ReadSnapshot(path string) (*RoutingData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	// The bufio.Reader is an io.ByteReader, so the inflater reads no further
	// than the end of the compressed stream and the CRC32 trailer stays
	// readable from br afterwards.
	br := bufio.NewReader(f)
	fr := flate.NewReader(br)
	defer fr.Close()

	crcR := &crc32Reader{r: fr, hash: crc32.NewIEEE()}

	var hdr snapshotHeader
	if err := binary.Read(crcR, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != snapshotMagic {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}
	if hdr.NumNodes > maxNodes {
		return nil, fmt.Errorf("NumNodes %d exceeds limit %d", hdr.NumNodes, maxNodes)
	}
	if hdr.NumEdges > maxEdges {
		return nil, fmt.Errorf("NumEdges %d exceeds limit %d", hdr.NumEdges, maxEdges)
	}

	denseToOSM, err := readInt64Slice(crcR, int(hdr.NumNodes))
	if err != nil {
		return nil, fmt.Errorf("read DenseToOSM: %w", err)
	}
	nodeLat, err := readFloat64Slice(crcR, int(hdr.NumNodes))
	if err != nil {
		return nil, fmt.Errorf("read NodeLat: %w", err)
	}
	nodeLon, err := readFloat64Slice(crcR, int(hdr.NumNodes))
	if err != nil {
		return nil, fmt.Errorf("read NodeLon: %w", err)
	}
	offset, err := readUint32Slice(crcR, int(hdr.NumNodes+1))
	if err != nil {
		return nil, fmt.Errorf("read Offset: %w", err)
	}
	targets, err := readUint32Slice(crcR, int(hdr.NumEdges))
	if err != nil {
		return nil, fmt.Errorf("read edge targets: %w", err)
	}
	lengths, err := readFloat64Slice(crcR, int(hdr.NumEdges))
	if err != nil {
		return nil, fmt.Errorf("read edge lengths: %w", err)
	}
	speeds, err := readFloat64Slice(crcR, int(hdr.NumEdges))
	if err != nil {
		return nil, fmt.Errorf("read edge speeds: %w", err)
	}
	accessFlags, err := readUint32Slice(crcR, int(hdr.NumEdges))
	if err != nil {
		return nil, fmt.Errorf("read edge access flags: %w", err)
	}

	tmcToEdges, err := readTMCToEdges(crcR)
	if err != nil {
		return nil, fmt.Errorf("read TMCToEdges: %w", err)
	}
	tmcNext, err := readTMCNext(crcR)
	if err != nil {
		return nil, fmt.Errorf("read TMCNext: %w", err)
	}

	// Consume the end of the compressed stream so br sits at the trailer.
	if _, err := io.Copy(io.Discard, fr); err != nil {
		return nil, fmt.Errorf("read end of compressed stream: %w", err)
	}

	expectedCRC := crcR.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(br, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC)
	}

	edges := make([]RoutingEdge, hdr.NumEdges)
	for i := range edges {
		edges[i] = RoutingEdge{
			Target:   targets[i],
			LengthM:  lengths[i],
			SpeedMPS: speeds[i],
			Access:   access.Flags(accessFlags[i]),
		}
	}

	osmToNode := make(map[int64]NodeInfo, hdr.NumNodes)
	for i, id := range denseToOSM {
		osmToNode[id] = NodeInfo{Lat: nodeLat[i], Lon: nodeLon[i], DenseIndex: uint32(i)}
	}

	rd := &RoutingData{
		DenseToOSM: denseToOSM,
		OSMToNode:  osmToNode,
		Edges:      edges,
		Offset:     offset,
		TMCToEdges: tmcToEdges,
		TMCNext:    tmcNext,
	}

	if err := validateCSR(rd.Offset, targets, hdr.NumNodes); err != nil {
		return nil, fmt.Errorf("CSR invalid: %w", err)
	}

	return rd, nil
}

// validateCSR checks CSR invariants.
func validateCSR(offset, targets []uint32, numNodes uint32) error {
	if uint32(len(offset)) != numNodes+1 {
		return fmt.Errorf("Offset length %d != NumNodes+1 %d", len(offset), numNodes+1)
	}
	numEdges := offset[numNodes]
	if uint32(len(targets)) != numEdges {
		return fmt.Errorf("edge count %d != Offset[NumNodes] %d", len(targets), numEdges)
	}
	for i := uint32(1); i <= numNodes; i++ {
		if offset[i] < offset[i-1] {
			return fmt.Errorf("Offset not monotonic at %d: %d < %d", i, offset[i], offset[i-1])
		}
	}
	for i, target := range targets {
		if target >= numNodes {
			return fmt.Errorf("edge[%d].Target=%d >= NumNodes=%d", i, target, numNodes)
		}
	}
	return nil
}

// writeTMCToEdges/readTMCToEdges/writeTMCNext/readTMCNext encode the
// static TMC topology maps as a count followed by flat entries — small
// relative to the CSR arrays, so no zero-copy trick is needed here.

func writeTMCToEdges(w io.Writer, m map[uint32][]uint32) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(m))); err != nil {
		return err
	}
	for loc, edges := range m {
		if err := binary.Write(w, binary.LittleEndian, loc); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(edges))); err != nil {
			return err
		}
		if err := writeUint32Slice(w, edges); err != nil {
			return err
		}
	}
	return nil
}

func readTMCToEdges(r io.Reader) (map[uint32][]uint32, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	m := make(map[uint32][]uint32, count)
	for i := uint32(0); i < count; i++ {
		var loc, n uint32
		if err := binary.Read(r, binary.LittleEndian, &loc); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		edges, err := readUint32Slice(r, int(n))
		if err != nil {
			return nil, err
		}
		m[loc] = edges
	}
	return m, nil
}

func writeTMCNext(w io.Writer, m map[TMCLinkKey]uint32) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(m))); err != nil {
		return err
	}
	for key, next := range m {
		if err := binary.Write(w, binary.LittleEndian, key.LocationID); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, key.Direction); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, next); err != nil {
			return err
		}
	}
	return nil
}

func readTMCNext(r io.Reader) (map[TMCLinkKey]uint32, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	m := make(map[TMCLinkKey]uint32, count)
	for i := uint32(0); i < count; i++ {
		var key TMCLinkKey
		var next uint32
		if err := binary.Read(r, binary.LittleEndian, &key.LocationID); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &key.Direction); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &next); err != nil {
			return nil, err
		}
		m[key] = next
	}
	return m, nil
}

// Zero-copy I/O helpers using unsafe.Slice, kept in the teacher's style.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeInt64Slice(w io.Writer, s []int64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func writeFloat64Slice(w io.Writer, s []float64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readInt64Slice(r io.Reader, n int) ([]int64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]int64, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readFloat64Slice(r io.Reader, n int) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]float64, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

// CRC32 wrapping writers/readers.

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
