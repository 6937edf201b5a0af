package codegen

// A Jenny is a code generator.
//
// Each Jenny works with exactly one type of input, as indicated by its type
// parameter. Type parameters used in this way are named "Input" throughout
// the package.
//
// Each Jenny takes either one or many Inputs and produces zero or one
// output file. Go's generic system cannot express the union of the concrete
// jenny kinds as part of the Jenny interface itself, so JennyList takes each
// kind through its own append method.
type Jenny[Input any] interface {
	// JennyName returns the name of the generator.
	JennyName() string

	// OneToOne[Input] | ManyToOne[Input]
}

// NamedJenny is the part of every Jenny that does not depend on Input.
type NamedJenny interface {
	JennyName() string
}

// OneToOne is a Jenny that generates one file from one input, such as one
// wrapper source file per analyzed class.
type OneToOne[Input any] interface {
	Jenny[Input]

	// Generate takes an Input and generates one File, or none (nil) if the
	// jenny was a no-op for the provided Input.
	Generate(Input) (*File, error)
}

// ManyToOne is a Jenny that generates one file from all inputs, such as the
// documentation file of a generated package.
type ManyToOne[Input any] interface {
	Jenny[Input]

	// Generate takes a slice of Input and generates one File. A nil File
	// indicates the jenny was a no-op for the provided Inputs.
	Generate(...Input) (*File, error)
}
