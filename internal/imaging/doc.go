// Package imaging adapts encoded image containers to in-memory rasters and
// back, and resizes rasters.
//
// Rasters always hold 8-bit NRGBA pixels plus a Layout recording whether the
// source carried meaningful alpha. Every operation returns a new Raster and
// leaves its input untouched, so a raster can be handed from one stage to the
// next without copying.
//
// Data URLs are the boundary format used by the desktop UI. The MIME type in
// a data URL header is advisory: decoding sniffs the container and only falls
// back to the header hint when sniffing fails.
package imaging
