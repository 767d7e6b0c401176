// Package imagestore persists compiled table images in a bbolt file.
//
// Records live in the "images" bucket under big-endian sequence keys, so a
// cursor walk returns them in the order they were put. Values are msgpack
// encoded. A packed namespace holds one rom record followed by module
// records in load order.
package imagestore
