package jobs

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, source_path, title, owner_id, status, current_stage, progress, error_message, cancel_requested, retry_count, stage_extract_audio, stage_extract_frames, stage_transcribe, stage_ocr, stage_integrate, stage_summarize, stage_generate_output, audio_path, frames_path, transcript_path, ocr_frames_path, chapters_path, summary_path, output_path, created_at, updated_at, started_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              string
		sourcePath      string
		title           sql.NullString
		ownerID         sql.NullString
		statusStr       string
		currentStage    sql.NullString
		progress        sql.NullInt64
		errorMessage    sql.NullString
		cancelRequested sql.NullInt64
		retryCount      sql.NullInt64
		stageStates     [7]sql.NullString
		audioPath       sql.NullString
		framesPath      sql.NullString
		transcriptPath  sql.NullString
		ocrFramesPath   sql.NullString
		chaptersPath    sql.NullString
		summaryPath     sql.NullString
		outputPath      sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		startedRaw      sql.NullString
		completedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&title,
		&ownerID,
		&statusStr,
		&currentStage,
		&progress,
		&errorMessage,
		&cancelRequested,
		&retryCount,
		&stageStates[0],
		&stageStates[1],
		&stageStates[2],
		&stageStates[3],
		&stageStates[4],
		&stageStates[5],
		&stageStates[6],
		&audioPath,
		&framesPath,
		&transcriptPath,
		&ocrFramesPath,
		&chaptersPath,
		&summaryPath,
		&outputPath,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		SourcePath:   sourcePath,
		Title:        title.String,
		OwnerID:      ownerID.String,
		Status:       Status(statusStr),
		CurrentStage: Stage(currentStage.String),
		Progress:     int(progress.Int64),
		ErrorMessage: errorMessage.String,
		RetryCount:   int(retryCount.Int64),
		StageStates:  NewStageStates(),
		Artifacts: Artifacts{
			AudioPath:      audioPath.String,
			FramesPath:     framesPath.String,
			TranscriptPath: transcriptPath.String,
			OCRFramesPath:  ocrFramesPath.String,
			ChaptersPath:   chaptersPath.String,
			SummaryPath:    summaryPath.String,
			OutputPath:     outputPath.String,
		},
	}
	if cancelRequested.Valid {
		job.CancelRequested = cancelRequested.Int64 != 0
	}
	for i, stage := range stageOrder {
		if status, ok := ParseStageStatus(stageStates[i].String); ok {
			job.StageStates[stage] = status
		}
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
