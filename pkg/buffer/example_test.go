package buffer_test

import (
	"bytes"
	"fmt"
	"log"

	"github.com/ssargent/arenabuf/pkg/buffer"
	"github.com/ssargent/arenabuf/pkg/schema"
)

// Example shows the basic read and write cycle.
func Example() {
	s := schema.MustParse(`{"type": "table", "columns": [
		["name", {"type": "string"}],
		["age",  {"type": "uint8", "default": 18}],
		["tags", {"type": "list", "of": {"type": "string"}}]
	]}`)

	b := buffer.New(s)
	if err := b.Set("name", "Alice"); err != nil {
		log.Fatal(err)
	}
	if _, err := b.Push("tags", "admin"); err != nil {
		log.Fatal(err)
	}

	name, _, _ := buffer.GetAs[string](b, "name")
	age, _, _ := b.GetOrDefault("age")
	tag, _, _ := b.Get("tags.0")
	fmt.Println(name, age, tag)

	// Output: Alice 18 admin
}

func ExampleBuffer_Compact() {
	s := schema.MustParse(`{"type": "table", "columns": [["note", {"type": "string"}]]}`)
	b := buffer.New(s)
	for _, note := range []string{"draft", "second draft", "final"} {
		if err := b.Set("note", note); err != nil {
			log.Fatal(err)
		}
	}

	sizes, err := b.CalcBytes()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("reclaimable:", sizes.Reclaimable())

	if err := b.Compact(); err != nil {
		log.Fatal(err)
	}
	note, _, _ := b.Get("note")
	fmt.Println(note, b.Size())

	// Output:
	// reclaimable: 25
	// final 19
}

func ExampleCompare() {
	s := schema.MustParse(`{"type": "tuple", "sorted": true, "values": [
		{"type": "string", "size": 8},
		{"type": "uint32"}
	]}`)

	row := func(name string, n uint32) *buffer.Buffer {
		b := buffer.New(s)
		if err := b.Set("", []any{name, n}); err != nil {
			log.Fatal(err)
		}
		return b
	}
	a, b := row("apple", 10), row("apple", 9)

	c, err := buffer.Compare(a, b)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(c, bytes.Compare(a.Bytes(), b.Bytes()))

	// Output: 1 1
}
