package buses

import (
	"testing"

	"go.viam.com/test"
)

func TestOperationConstructors(t *testing.T) {
	buf := []byte{1, 2}
	test.That(t, Write(buf), test.ShouldResemble, Operation{Kind: OpKindWrite, Buf: buf})
	test.That(t, Read(buf), test.ShouldResemble, Operation{Kind: OpKindRead, Buf: buf})
	test.That(t, Write([]byte{0xF0, 0x00, 0x01}).String(), test.ShouldEqual, "Write(f0 00 01)")
	test.That(t, Read(make([]byte, 2)).String(), test.ShouldEqual, "Read(00 00)")
	test.That(t, OperationKind(7).String(), test.ShouldEqual, "OperationKind(7)")
}

func TestFlattenScatter(t *testing.T) {
	first := make([]byte, 2)
	second := make([]byte, 1)
	ops := []Operation{
		Write([]byte{0x0F, 0x00, 0x00}),
		Read(first),
		Write(nil),
		Write([]byte{0xEE}),
		Read(second),
	}
	test.That(t, TotalLen(ops), test.ShouldEqual, 7)

	tx, err := Flatten(ops)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tx, test.ShouldResemble, []byte{0x0F, 0x00, 0x00, 0x00, 0x00, 0xEE, 0x00})

	rx := []byte{0x01, 0x02, 0x03, 0x55, 0xAA, 0x00, 0x42}
	test.That(t, Scatter(ops, rx), test.ShouldBeNil)
	test.That(t, first, test.ShouldResemble, []byte{0x55, 0xAA})
	test.That(t, second, test.ShouldResemble, []byte{0x42})
	// Write segments are left alone.
	test.That(t, ops[0].Buf, test.ShouldResemble, []byte{0x0F, 0x00, 0x00})

	err = Scatter(ops, rx[:6])
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "returned 6 bytes, expected 7")

	_, err = Flatten([]Operation{{Kind: OperationKind(3), Buf: []byte{1}}})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown kind")
}

func TestFlattenEmpty(t *testing.T) {
	tx, err := Flatten(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tx, test.ShouldBeEmpty)
	test.That(t, Scatter(nil, nil), test.ShouldBeNil)
}
