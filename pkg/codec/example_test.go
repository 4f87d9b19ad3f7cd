package codec_test

import (
	"errors"
	"fmt"
	"log"

	"github.com/ssargent/arenabuf/pkg/buffer"
	"github.com/ssargent/arenabuf/pkg/codec"
	"github.com/ssargent/arenabuf/pkg/schema"
)

// ExampleFrameCodec demonstrates framing a buffer and opening it again
func ExampleFrameCodec() {
	s := schema.MustParse(`{"type": "table", "columns": [["name", {"type": "string"}]]}`)
	b := buffer.New(s)
	if err := b.Set("name", "Alice"); err != nil {
		log.Fatal(err)
	}

	c := codec.NewFrameCodec()
	framed, err := c.Encode(s.Fingerprint(), b.Bytes())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Framed %d bytes into %d\n", b.Size(), len(framed))

	frame, err := c.DecodeFor(s.Fingerprint(), framed)
	if err != nil {
		log.Fatal(err)
	}
	opened, err := buffer.Open(s, frame.Payload)
	if err != nil {
		log.Fatal(err)
	}
	name, _, _ := opened.Get("name")
	fmt.Println("Name:", name)

	// Output:
	// Framed 19 bytes into 43
	// Name: Alice
}

// ExampleFrame_Check demonstrates rejecting a frame written under another schema
func ExampleFrame_Check() {
	v1 := schema.MustParse(`{"type": "string"}`)
	v2 := schema.MustParse(`{"type": "bytes"}`)

	c := codec.NewFrameCodec()
	framed, err := c.Encode(v1.Fingerprint(), buffer.New(v1).Bytes())
	if err != nil {
		log.Fatal(err)
	}

	_, err = c.DecodeFor(v2.Fingerprint(), framed)
	fmt.Println(errors.Is(err, codec.ErrFingerprint))

	// Output: true
}
