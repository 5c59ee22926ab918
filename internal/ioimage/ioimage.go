package ioimage

// IoImage owns the pair of independent seqlocks that carry one cycle's
// worth of process data between the fieldbus thread and the scheduler
// thread. The input seqlock is written only by the fieldbus, read only by
// the scheduler; the output seqlock is written only by the scheduler,
// read only by the fieldbus. Reversing either direction is a caller bug
// this type does not guard against at runtime (spec.md §5: "never
// reversed" is an API-shape invariant, not a locking one).
type IoImage struct {
	inputs  *DoubleBuffer
	outputs *DoubleBuffer
}

// NewIoImage constructs a zero-valued IoImage.
func NewIoImage() *IoImage {
	return &IoImage{
		inputs:  NewDoubleBuffer(),
		outputs: NewDoubleBuffer(),
	}
}

// ReadInputs returns the most recently committed input snapshot. Called
// by the scheduler thread only.
func (img *IoImage) ReadInputs() ProcessData {
	return img.inputs.Read()
}

// WriteInputs publishes a new input snapshot. Called by the fieldbus
// thread only.
func (img *IoImage) WriteInputs(f func(*ProcessData)) {
	img.inputs.Write(f)
}

// ReadOutputs returns the most recently committed output snapshot. Called
// by the fieldbus thread only.
func (img *IoImage) ReadOutputs() ProcessData {
	return img.outputs.Read()
}

// WriteOutputs publishes a new output snapshot. Called by the scheduler
// thread only.
func (img *IoImage) WriteOutputs(f func(*ProcessData)) {
	img.outputs.Write(f)
}
