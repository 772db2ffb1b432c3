// Package engine orchestrates annotation jobs: batching subtitle lines,
// driving a bounded worker pool against one model backend, tracking
// progress, and persisting checkpoints so interrupted jobs resume without
// repeating finished work.
//
// A job moves through a small state machine: INIT loads any prior
// checkpoint, RUNNING and PAUSED alternate cooperatively, and the job ends
// in COMPLETED, CANCELLED, or FAILED. Per-line failures never fail the job;
// after retries are exhausted a line is recorded with the unknown sentinel
// and counted as completed, so the completed count only moves forward.
package engine
