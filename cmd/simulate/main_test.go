package main

import (
	"net/http"
	"testing"
)

func TestIsOverlapRejection(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"overlap check", http.StatusBadRequest, `{"success":false,"error":"validation_error","message":"time slot overlaps with existing availability 09:00-10:00 on 2025-03-03"}`, true},
		{"lock or constraint", http.StatusConflict, `{"success":false,"error":"conflict","message":"schedule busy"}`, true},
		{"other validation", http.StatusBadRequest, `{"success":false,"error":"validation_error","message":"start_time must be before end_time"}`, false},
		{"unparseable 400", http.StatusBadRequest, `<html>`, false},
		{"server error", http.StatusInternalServerError, `{"error":"internal_error"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isOverlapRejection(tt.status, []byte(tt.body)); got != tt.want {
				t.Errorf("isOverlapRejection(%d) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}
