package ringbuffer

import (
	"math/rand"
	"sync"
	"testing"
)

func TestCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	cases := []struct{ requested, want int }{
		{1, 2}, {2, 2}, {3, 4}, {5, 8}, {1000, 1024}, {1024, 1024},
	}
	for _, c := range cases {
		b := New(c.requested, 2)
		if got := b.CapacityFrames(); got != c.want {
			t.Errorf("New(%d): capacity = %d, want %d", c.requested, got, c.want)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	b := New(16, 2)
	in := []float32{1, 2, 3, 4, 5, 6}
	n := b.Write(in)
	if n != 3 {
		t.Fatalf("Write: wrote %d frames, want 3", n)
	}
	if b.Available() != 3 {
		t.Fatalf("Available = %d, want 3", b.Available())
	}
	out := make([]float32, 6)
	n = b.Read(out)
	if n != 3 {
		t.Fatalf("Read: got %d frames, want 3", n)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	if !b.IsEmpty() {
		t.Fatalf("expected empty after full read")
	}
}

func TestWriteToFullReturnsZero(t *testing.T) {
	b := New(2, 1) // capacity 2 frames
	in := make([]float32, 10)
	n := b.Write(in)
	if n != 2 {
		t.Fatalf("first write = %d, want 2", n)
	}
	n = b.Write(in)
	if n != 0 {
		t.Fatalf("write to full buffer = %d, want 0", n)
	}
}

func TestReadFromEmptyReturnsZero(t *testing.T) {
	b := New(4, 2)
	out := make([]float32, 4)
	if n := b.Read(out); n != 0 {
		t.Fatalf("read from empty = %d, want 0", n)
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	b := New(8, 1)
	b.Write([]float32{1, 2, 3})
	peek := make([]float32, 3)
	if n := b.Peek(peek); n != 3 {
		t.Fatalf("Peek = %d, want 3", n)
	}
	if b.Available() != 3 {
		t.Fatalf("Available after peek = %d, want 3 (unchanged)", b.Available())
	}
	read := make([]float32, 3)
	b.Read(read)
	want := []float32{1, 2, 3}
	for i := range want {
		if read[i] != want[i] {
			t.Fatalf("read = %v, want %v", read, want)
		}
	}
}

func TestSkip(t *testing.T) {
	b := New(8, 1)
	b.Write([]float32{1, 2, 3, 4})
	if n := b.Skip(2); n != 2 {
		t.Fatalf("Skip = %d, want 2", n)
	}
	out := make([]float32, 2)
	b.Read(out)
	if out[0] != 3 || out[1] != 4 {
		t.Fatalf("after skip, read = %v, want [3 4]", out)
	}
}

func TestClearResetsAndBumpsGeneration(t *testing.T) {
	b := New(8, 1)
	b.Write([]float32{1, 2, 3})
	gen0 := b.Generation()
	b.Clear()
	if !b.IsEmpty() {
		t.Fatalf("expected empty after Clear")
	}
	if b.Generation() == gen0 {
		t.Fatalf("expected generation to change after Clear")
	}
}

// TestConcurrentSPSC exercises property 1 from spec §8: for any interleaving
// of a single writer and single reader, the read sequence is a prefix of the
// written sequence and Available never exceeds capacity.
func TestConcurrentSPSC(t *testing.T) {
	const channels = 2
	const totalFrames = 50000
	b := New(256, channels)

	written := make([]float32, 0, totalFrames*channels)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		rng := rand.New(rand.NewSource(1))
		produced := 0
		for produced < totalFrames {
			blockFrames := 1 + rng.Intn(64)
			block := make([]float32, blockFrames*channels)
			for i := range block {
				block[i] = float32(produced*channels + i)
			}
			written = append(written, block...)
			off := 0
			for off < len(block) {
				n := b.Write(block[off:])
				if n == 0 {
					continue
				}
				off += n * channels
			}
			produced += blockFrames
		}
	}()

	read := make([]float32, 0, totalFrames*channels)
	go func() {
		defer wg.Done()
		got := 0
		buf := make([]float32, 37*channels)
		for got < totalFrames {
			if b.Available() > b.CapacityFrames() {
				t.Errorf("available %d exceeds capacity %d", b.Available(), b.CapacityFrames())
			}
			n := b.Read(buf)
			if n == 0 {
				continue
			}
			read = append(read, buf[:n*channels]...)
			got += n
		}
	}()

	wg.Wait()

	if len(read) != len(written) {
		t.Fatalf("read %d samples, want %d", len(read), len(written))
	}
	for i := range written {
		if read[i] != written[i] {
			t.Fatalf("sample %d: read %v, want %v (read sequence must equal written prefix)", i, read[i], written[i])
		}
	}
}
