// Package transcribe turns a raw audio recording into text by running an
// external speech recognition engine as a subprocess.
//
// Each call to Orchestrator.Run owns a fresh job namespace: the audio is
// staged into a uniquely named temp file, the engine is launched with an
// augmented PATH and a hard deadline, the first .txt artifact it writes is
// read back, and every temporary file is removed before the call returns,
// whatever the outcome. Failures are classified into a small taxonomy
// (see JobError) that maps onto the Response returned to the UI bridge.
package transcribe
