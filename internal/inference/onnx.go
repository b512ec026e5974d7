package inference

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXRuntime loads sessions through the ONNX Runtime shared library.
type ONNXRuntime struct {
	LibraryPath    string
	IntraOpThreads int

	once    sync.Once
	initErr error
}

func (o *ONNXRuntime) init() error {
	o.once.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if o.LibraryPath != "" {
			ort.SetSharedLibraryPath(o.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			o.initErr = fmt.Errorf("initialize onnxruntime: %w", err)
		}
	})
	return o.initErr
}

// Load opens modelPath and binds its first input and output.
func (o *ONNXRuntime) Load(modelPath string) (Session, error) {
	if err := o.init(); err != nil {
		return nil, err
	}
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect model: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model declares %d inputs and %d outputs", len(inputs), len(outputs))
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()
	if o.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(o.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &onnxSession{session: session}, nil
}

// Shutdown tears down the runtime environment after every session is closed.
func (o *ONNXRuntime) Shutdown() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

type onnxSession struct {
	session *ort.DynamicAdvancedSession
}

func (s *onnxSession) Run(input Tensor) (Tensor, error) {
	in, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return Tensor{}, fmt.Errorf("input tensor: %w", err)
	}
	defer in.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{in}, outputs); err != nil {
		return Tensor{}, err
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return Tensor{}, fmt.Errorf("output is %T, want float32 tensor", outputs[0])
	}
	shape := out.GetShape()
	data := make([]float32, len(out.GetData()))
	copy(data, out.GetData())
	return Tensor{Shape: []int64(shape), Data: data}, nil
}

func (s *onnxSession) Close() error {
	return s.session.Destroy()
}
