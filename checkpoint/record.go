// Package checkpoint stores training checkpoints as
// self-contained files next to a plain-text index.
package checkpoint

import (
	"fmt"

	"github.com/tantelu/CSinGAN"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var r Record
	serializer.RegisterTypedDeserializer(r.SerializerType(), DeserializeRecord)
}

// A Record is the persisted state of a training run at a
// stage boundary.
type Record struct {
	// Stage is the stage the run resumes at.
	Stage int

	// ImageID identifies the training image.
	ImageID int

	// Weights and optimizer states, encoded by their
	// owners.
	Generator        []byte
	Discriminator    []byte
	GeneratorOpt     []byte
	DiscriminatorOpt []byte
}

// DeserializeRecord deserializes a Record.
func DeserializeRecord(d []byte) (*Record, error) {
	var stage, imageID serializer.Int
	var res Record
	err := serializer.DeserializeAny(d, &stage, &imageID, &res.Generator, &res.Discriminator,
		&res.GeneratorOpt, &res.DiscriminatorOpt)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Record", err)
	}
	if stage < 0 {
		return nil, fmt.Errorf("deserialize Record: %w: negative stage %d",
			singan.ErrCheckpointCorrupt, stage)
	}
	res.Stage = int(stage)
	res.ImageID = int(imageID)
	return &res, nil
}

// SerializerType returns the unique ID used to serialize
// a Record with the serializer package.
func (r *Record) SerializerType() string {
	return "github.com/tantelu/CSinGAN/checkpoint.Record"
}

// Serialize serializes the Record.
func (r *Record) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(r.Stage),
		serializer.Int(r.ImageID),
		r.Generator,
		r.Discriminator,
		r.GeneratorOpt,
		r.DiscriminatorOpt,
	)
}
