package sqlinline

const QEnsureVideoJobsSchema = `--sql 5d0e8f41-7a2c-4c3b-9e16-2b8f0c4a7d13
create table if not exists video_jobs (
  id               uuid primary key,
  owner_id         text not null,
  title            text not null,
  description      text not null default '',
  kind             text not null,
  status           text not null,
  prompt           text not null,
  source_image_ref text,
  video_ref        text,
  thumbnail_ref    text,
  metadata         jsonb not null default '{}'::jsonb,
  duration         int not null,
  resolution       text not null,
  style            text,
  effects          jsonb not null default '[]'::jsonb,
  camera_controls  jsonb,
  created_at       timestamptz not null default now(),
  updated_at       timestamptz not null default now()
);
create index if not exists video_jobs_owner_created_idx on video_jobs (owner_id, created_at desc);
`

const QInsertVideoJob = `--sql 8b3f2c6d-1e4a-4f7b-a2d9-6c0e5b8a1f27
insert into video_jobs(
  id,
  owner_id,
  title,
  description,
  kind,
  status,
  prompt,
  source_image_ref,
  metadata,
  duration,
  resolution,
  style,
  effects,
  camera_controls,
  created_at,
  updated_at
)
values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  nullif($8::text, ''),
  coalesce($9::jsonb, '{}'::jsonb),
  $10::int,
  $11::text,
  nullif($12::text, ''),
  coalesce($13::jsonb, '[]'::jsonb),
  $14::jsonb,
  $15::timestamptz,
  $15::timestamptz
);
`

const videoJobColumns = `
  id::text,
  owner_id,
  title,
  description,
  kind,
  status,
  prompt,
  coalesce(source_image_ref, ''),
  coalesce(video_ref, ''),
  coalesce(thumbnail_ref, ''),
  metadata,
  duration,
  resolution,
  coalesce(style, ''),
  effects,
  camera_controls,
  created_at,
  updated_at`

const QSelectVideoJobByID = `--sql 2e9a7c15-4b6d-4a08-8f3e-d1c5b7a9e064
select` + videoJobColumns + `
from video_jobs
where id = $1::uuid;
`

const QSelectVideoJobForOwner = `--sql c4a1e7f2-9d3b-4e6c-b0a8-35f7d2c9e1b6
select` + videoJobColumns + `
from video_jobs
where id = $1::uuid
  and owner_id = $2::text;
`

const QListVideoJobsByOwner = `--sql 7f6c3b9e-0a2d-4d51-86e4-a9b2c1f0d378
select` + videoJobColumns + `
from video_jobs
where owner_id = $1::text
order by created_at desc, id desc;
`

const QUpdateVideoJobDetails = `--sql 91d4b8a6-3c7e-4f20-a5b9-e8c2d6f1a043
update video_jobs
set title = coalesce($3::text, title),
    description = coalesce($4::text, description),
    updated_at = $5::timestamptz
where id = $1::uuid
  and owner_id = $2::text
returning` + videoJobColumns + `;
`

const QFinishVideoJob = `--sql e3b7a0d9-6f1c-4b8e-9d24-0c5a8f3e7b12
update video_jobs
set status = $2::text,
    video_ref = nullif($3::text, ''),
    thumbnail_ref = nullif($4::text, ''),
    metadata = coalesce($5::jsonb, '{}'::jsonb),
    updated_at = $6::timestamptz
where id = $1::uuid
  and status = 'processing'
returning` + videoJobColumns + `;
`

const QDeleteVideoJob = `--sql 4a8e2f6b-b1d7-4c93-8e05-f2a9c3d6b170
delete from video_jobs
where id = $1::uuid
  and owner_id = $2::text;
`
