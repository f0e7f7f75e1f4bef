// Command rasterkit inspects GeoTIFF rasters, detects and corrects data
// issues, renders band previews and exports reordered band subsets.
package main
