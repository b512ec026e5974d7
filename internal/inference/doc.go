// Package inference runs the background segmentation model.
//
// An Engine owns at most one model session. The session is created on first
// use through a guarded get-or-create path, shared by every later call, and
// closed only when the owner closes the Engine. A failed creation leaves the
// Engine uninitialized so the next call tries again.
//
// The model runtime is reached through the Runtime interface; ONNXRuntime is
// the production implementation.
package inference
