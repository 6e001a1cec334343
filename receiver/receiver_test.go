package receiver_test

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/pchan37/iris/cipher"
	"github.com/pchan37/iris/frame"
	"github.com/pchan37/iris/progress"
	"github.com/pchan37/iris/receiver"
	"github.com/pchan37/iris/relay"
	"github.com/pchan37/iris/room"
	"github.com/pchan37/iris/sender"
	"github.com/rs/zerolog"
)

func startRelay(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	r := relay.New(ln, relay.DefaultWorkerPoolSize, zerolog.Nop())
	go r.Serve()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
}

// runTransfer starts sender.Send and receiver.Receive concurrently
// against a live relay, using the sender's own progress stream to
// learn the assigned room identifier before dialing the receiver —
// exactly how cmd/iris-send and cmd/iris-receive are wired together by
// a human copying the printed passphrase.
func runTransfer(t *testing.T, addr string, roots []string, destRoot string, mode receiver.ConflictingFileMode) {
	t.Helper()
	const passphrase = "test-secret"

	senderConn, err := frame.DialTCP(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer senderConn.Close()

	senderWorker, senderDriver := progress.NewChannelPair()
	senderErrCh := make(chan error, 1)
	go func() {
		senderErrCh <- sender.Send(senderConn, cipher.XChaCha20Poly1305, passphrase, roots, senderWorker)
	}()

	var id room.Identifier
	for ev := range senderDriver.Events() {
		if ev.Kind == progress.EventAssignedRoomIdentifier {
			id = room.Identifier(ev.RoomIdentifier)
			break
		}
	}

	receiverConn, err := frame.DialTCP(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer receiverConn.Close()

	receiverErrCh := make(chan error, 1)
	go func() {
		receiverErrCh <- receiver.Receive(receiverConn, id, passphrase, destRoot, mode, progress.WorkerHandle{})
	}()

	if err := <-senderErrCh; err != nil {
		t.Fatalf("sender: %v", err)
	}
	if err := <-receiverErrCh; err != nil {
		t.Fatalf("receiver: %v", err)
	}
}

// TestEndToEndSingleFileTransfer matches Testable Property 1
// (round-trip correctness): the file at the receiver is byte-identical
// to the one at the sender after a full relay-mediated transfer.
func TestEndToEndSingleFileTransfer(t *testing.T) {
	addr := startRelay(t)

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	content := []byte("Hello, world!\n")
	writeFile(t, filepath.Join(srcDir, "a"), content)

	runTransfer(t, addr, []string{filepath.Join(srcDir, "a")}, dstDir, receiver.Overwrite)

	got, err := os.ReadFile(filepath.Join(dstDir, "a"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q want %q", got, content)
	}
}

// TestEndToEndDirectoryTreeTransfer matches Testable Property 2
// (directory structure preservation).
func TestEndToEndDirectoryTreeTransfer(t *testing.T) {
	addr := startRelay(t)

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	proj := filepath.Join(srcDir, "proj")
	writeFile(t, filepath.Join(proj, "a.txt"), []byte("aaa"))
	writeFile(t, filepath.Join(proj, "sub", "b.txt"), []byte("bbbbb"))

	runTransfer(t, addr, []string{proj}, dstDir, receiver.Overwrite)

	for rel, want := range map[string]string{
		"proj/a.txt":     "aaa",
		"proj/sub/b.txt": "bbbbb",
	} {
		got, err := os.ReadFile(filepath.Join(dstDir, rel))
		if err != nil {
			t.Fatalf("%s: %v", rel, err)
		}
		if string(got) != want {
			t.Fatalf("%s: got %q want %q", rel, got, want)
		}
	}
}

// TestEndToEndEmptyDirectoryTransfer matches scenario S2.
func TestEndToEndEmptyDirectoryTransfer(t *testing.T) {
	addr := startRelay(t)

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	empty := filepath.Join(srcDir, "emptydir")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}

	runTransfer(t, addr, []string{empty}, dstDir, receiver.Overwrite)

	info, err := os.Stat(filepath.Join(dstDir, "emptydir"))
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Fatal("expected emptydir to be a directory")
	}
}

// TestSkipModeNeverTouchesExistingFile matches Testable Property 7.
func TestSkipModeNeverTouchesExistingFile(t *testing.T) {
	addr := startRelay(t)

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "a"), []byte("new-content"))
	writeFile(t, filepath.Join(dstDir, "a"), []byte("preexisting"))

	runTransfer(t, addr, []string{filepath.Join(srcDir, "a")}, dstDir, receiver.Skip)

	got, err := os.ReadFile(filepath.Join(dstDir, "a"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "preexisting" {
		t.Fatalf("skip mode modified existing file: got %q", got)
	}
}

// TestResumeContinuesFromOnDiskSize matches Testable Property 6.
func TestResumeContinuesFromOnDiskSize(t *testing.T) {
	addr := startRelay(t)

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	full := make([]byte, 300)
	for i := range full {
		full[i] = byte(i)
	}
	writeFile(t, filepath.Join(srcDir, "big"), full)
	writeFile(t, filepath.Join(dstDir, "big"), full[:200])

	runTransfer(t, addr, []string{filepath.Join(srcDir, "big")}, dstDir, receiver.Resume)

	got, err := os.ReadFile(filepath.Join(dstDir, "big"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(full) {
		t.Fatal("resumed file does not match source byte-for-byte")
	}
}

func TestSplitPassphrase(t *testing.T) {
	id, secret, err := receiver.SplitPassphrase("1234-agile-butter-cloud")
	if err != nil {
		t.Fatal(err)
	}
	if id != room.Identifier(1234) {
		t.Fatalf("expected room 1234, got %v", id)
	}
	if secret != "agile-butter-cloud" {
		t.Fatalf("unexpected secret: %q", secret)
	}

	if _, _, err := receiver.SplitPassphrase("not-a-room-at-all"); err == nil {
		t.Fatal("expected error for non-numeric room half")
	}
	if _, _, err := receiver.SplitPassphrase("noseparator"); err == nil {
		t.Fatal("expected error for missing separator")
	}
}

// TestWireLevelPropertiesHoldAcrossARealTransfer matches Testable
// Properties 3 (frame symmetry) and 4 (no consecutive same-direction
// I/O) by wrapping both peers' sockets in a frame.TrackingConn and
// driving a full relay-mediated transfer through them.
func TestWireLevelPropertiesHoldAcrossARealTransfer(t *testing.T) {
	addr := startRelay(t)

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "a"), []byte("hello from the wire"))

	const passphrase = "test-secret"

	rawSenderConn, err := frame.DialTCP(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer rawSenderConn.Close()
	senderConn := frame.NewTrackingConn(rawSenderConn)

	senderWorker, senderDriver := progress.NewChannelPair()
	senderErrCh := make(chan error, 1)
	go func() {
		senderErrCh <- sender.Send(senderConn, cipher.XChaCha20Poly1305, passphrase, []string{filepath.Join(srcDir, "a")}, senderWorker)
	}()

	var id room.Identifier
	for ev := range senderDriver.Events() {
		if ev.Kind == progress.EventAssignedRoomIdentifier {
			id = room.Identifier(ev.RoomIdentifier)
			break
		}
	}

	rawReceiverConn, err := frame.DialTCP(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer rawReceiverConn.Close()
	receiverConn := frame.NewTrackingConn(rawReceiverConn)

	receiverErrCh := make(chan error, 1)
	go func() {
		receiverErrCh <- receiver.Receive(receiverConn, id, passphrase, dstDir, receiver.Overwrite, progress.WorkerHandle{})
	}()

	if err := <-senderErrCh; err != nil {
		t.Fatalf("sender: %v", err)
	}
	if err := <-receiverErrCh; err != nil {
		t.Fatalf("receiver: %v", err)
	}

	// Property 4 is a post-handshake invariant (spec.md §8): the
	// pre-PAKE greeting has the sender read AssignedRoomIdentifier then
	// ReceiverConnected back to back with nothing to write in between,
	// which is expected and excluded here the same way the relay's own
	// synthesis of ReceiverConnected is excluded from property 3 below.
	senderOps := senderConn.Ops()
	if len(senderOps) < 3 {
		t.Fatalf("transfer too short to exercise property 4: senderOps=%d", len(senderOps))
	}
	checkNoConsecutiveSameDirection(t, "sender", senderOps[3:])
	receiverOps := receiverConn.Ops()
	if len(receiverOps) < 1 {
		t.Fatalf("transfer too short to exercise property 4: receiverOps=%d", len(receiverOps))
	}
	checkNoConsecutiveSameDirection(t, "receiver", receiverOps[1:])

	// Property 3, restricted to the messages the relay purely forwards:
	// the greeting (SenderConnecting/AssignedRoomIdentifier/
	// ReceiverConnecting) and ReceiverConnected are originated or
	// consumed by the relay itself, not the other peer, so they are
	// dropped before comparing.
	senderWrites := opsPayloads(senderConn.Ops(), frame.DirWrite)
	senderReads := opsPayloads(senderConn.Ops(), frame.DirRead)
	receiverWrites := opsPayloads(receiverConn.Ops(), frame.DirWrite)
	receiverReads := opsPayloads(receiverConn.Ops(), frame.DirRead)

	if len(senderWrites) < 2 || len(senderReads) < 3 || len(receiverWrites) < 2 {
		t.Fatalf("transfer too short to exercise property 3: senderWrites=%d senderReads=%d receiverWrites=%d",
			len(senderWrites), len(senderReads), len(receiverWrites))
	}
	assertFramesEqual(t, "sender write -> receiver read", senderWrites[1:], receiverReads)
	assertFramesEqual(t, "receiver write -> sender read", receiverWrites[1:], senderReads[2:])
}

func opsPayloads(ops []frame.Op, dir frame.Direction) [][]byte {
	var out [][]byte
	for _, op := range ops {
		if op.Dir == dir {
			out = append(out, op.Payload)
		}
	}
	return out
}

func assertFramesEqual(t *testing.T, label string, a, b [][]byte) {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("%s: length mismatch, %d vs %d", label, len(a), len(b))
	}
	for i := range a {
		if string(a[i]) != string(b[i]) {
			t.Fatalf("%s: frame %d mismatch: %q vs %q", label, i, a[i], b[i])
		}
	}
}

func checkNoConsecutiveSameDirection(t *testing.T, who string, ops []frame.Op) {
	t.Helper()
	for i := 1; i < len(ops); i++ {
		if ops[i].Dir == ops[i-1].Dir {
			t.Fatalf("%s: consecutive %s ops at index %d", who, ops[i].Dir, i)
		}
	}
}

func TestParseConflictingFileMode(t *testing.T) {
	cases := map[string]receiver.ConflictingFileMode{
		"overwrite": receiver.Overwrite,
		"skip":      receiver.Skip,
		"resume":    receiver.Resume,
		"error":     receiver.Error,
	}
	for s, want := range cases {
		got, err := receiver.ParseConflictingFileMode(s)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("%s: got %v want %v", s, got, want)
		}
	}
	if _, err := receiver.ParseConflictingFileMode("bogus"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
