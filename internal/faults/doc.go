// Package faults defines the closed error taxonomy shared by every phase
// handler and the pipeline scheduler. Handlers classify their failures into
// a Category; the scheduler decides retry behavior from the category alone.
package faults
