package services

// Chunk is one planned part of a multipart upload. Part numbers are 1-based
// and contiguous; the last chunk may be shorter than the rest.
type Chunk struct {
	PartNumber int32
	Offset     int64
	Size       int64
}

// PlanChunks partitions size into fixed-size chunks. The function is pure:
// the same size and chunkSize always produce the identical plan, so URLs
// regenerated mid-upload stay compatible with parts already uploaded under
// the original plan.
func PlanChunks(size, chunkSize int64) []Chunk {
	if size <= 0 || chunkSize <= 0 {
		return nil
	}

	count := (size + chunkSize - 1) / chunkSize
	plan := make([]Chunk, 0, count)

	for offset := int64(0); offset < size; offset += chunkSize {
		partSize := chunkSize
		if remaining := size - offset; remaining < chunkSize {
			partSize = remaining
		}
		plan = append(plan, Chunk{
			PartNumber: int32(len(plan) + 1),
			Offset:     offset,
			Size:       partSize,
		})
	}

	return plan
}
