// Package instr owns the typed view of an instrument.
//
// Ownership boundary:
//   - the Instrument façade over one Communicator
//   - the property engine compiling Binding descriptors into typed get/set
//   - indexed sub-device views (channels, axes) sharing the parent's
//     Communicator
//
// Instr never touches a transport backend directly; all wire traffic goes
// through the Communicator contract.
package instr
