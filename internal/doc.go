// Package internal contains the implementation packages for assemble.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - module: Module identity, resident sources, the binary loader and the locator
//   - assembler: Capability scanning, the discovery ledger, processor factories and the run loop
//   - processors: Builtin processors the host registers before any module is scanned
//   - di: Service container that resolves processor dependencies by type
//   - config: Viper-backed configuration with detailed validation
//   - errors: Structured errors classifying what a run tolerates and what fails it
//   - logging: Structured logging over log/slog
//   - tracing: OpenTelemetry spans for each run phase
//   - watcher: File system monitoring with debouncing
//   - validation: Path, extension and endpoint checks
//   - version: Build information
//
// # Inter-Package Communication
//
//   - The locator yields modules from resident sources and the loader
//   - The assembler records them in its ledger and asks the scanner for processor types
//   - Factories build processors, resolving dependencies through the container
//   - Every ledger module is dispatched to every processor, in discovery order
//   - The watcher re-runs the assembler when module binaries appear
//
// For detailed documentation, see the individual package documentation.
package internal
