// Package models defines the canonical event records shared by every pipeline stage.
package models
