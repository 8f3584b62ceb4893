package main

// Define allow list of two character commands
var allowedCommands = []string{
	"??", // Query overall board information
	"?V", // Read firmware version
	"?N", // Read serial number
	"?D", // Read firmware build date
	"?R", // Read reset reason
	"?U", // Read uptime in milliseconds

	// Telemetry Rate
	"R?", // Query current telemetry rate
	"R0", // Pause telemetry output
	"R1", // Set telemetry rate to 10Hz
	"R2", // Set telemetry rate to 20Hz
	"R5", // Set telemetry rate to 50Hz

	// Output Format and Content
	"O?", // Query current output settings
	"OC", // Set output format to CSV telemetry lines
	"OJ", // Report configuration as a JSON object
	"OV", // Enable velocity reporting from the tick differentiator
	"OT", // Enable raw tick count reporting
	"OD", // Disable extra output fields

	// Encoder Counters
	"Z!", // Zero the encoder tick counters
	"C?", // Query current tick counts
	"T?", // Query latest telemetry sample

	// Wheel Geometry
	"G?", // Query wheel geometry settings
	"GR", // Report wheel radius
	"GB", // Report wheel base
	"GT", // Report encoder ticks per revolution

	// Velocity Estimation
	"V?", // Query velocity estimator settings
	"V+", // Enable velocity low-pass filtering
	"V-", // Disable velocity low-pass filtering

	// Persistence
	"A?", // Query saved settings
	"A!", // Save current settings to non-volatile memory
	"AX", // Restore factory defaults
}
